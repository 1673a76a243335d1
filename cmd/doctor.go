package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pseudocoder/devbridge/internal/config"
	"github.com/pseudocoder/devbridge/internal/runner"
	"github.com/pseudocoder/devbridge/internal/vcs"
)

// DoctorResult is what `devbridge doctor --json` prints.
type DoctorResult struct {
	Version string        `json:"version"` // output schema, "1"
	Checks  []DoctorCheck `json:"checks"`  // in evaluation order
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is the outcome of one preflight check.
type DoctorCheck struct {
	ID         string `json:"id"`     // stable, e.g. "agent.executable"
	Status     string `json:"status"` // pass, warn or fail
	Message    string `json:"message"`
	NextAction string `json:"next_action"`
}

// DoctorSummary counts checks per status.
type DoctorSummary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

func summarize(checks []DoctorCheck) DoctorSummary {
	var s DoctorSummary
	for _, c := range checks {
		switch c.Status {
		case statusPass:
			s.Pass++
		case statusWarn:
			s.Warn++
		case statusFail:
			s.Fail++
		}
	}
	return s
}

// Stable check IDs used by the doctor command.
const (
	checkIDConfig       = "config.valid"
	checkIDAgent        = "agent.executable"
	checkIDVCS          = "vcs.executable"
	checkIDWorkTree     = "vcs.worktree"
	checkIDAgentBaseURL = "agent.base_url"
)

// Stable status values for doctor checks.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// Function-variable seams for testability.
var (
	// doctorLookPath resolves an executable on PATH.
	doctorLookPath = runner.LookPath

	// doctorIsWorkTree reports whether dir is inside a git work tree.
	doctorIsWorkTree = defaultIsWorkTree
)

func defaultIsWorkTree(gitExecutable, dir string) bool {
	c := vcs.NewClient(runner.New(zerolog.Nop()), vcs.Options{Executable: gitExecutable, Dir: dir}, zerolog.Nop())
	return c.IsWorkTree(context.Background())
}

// newDoctorCmd builds `devbridge doctor`, which runs preflight checks and
// prints a remediation hint for every check that did not pass.
func newDoctorCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		jsonMode   bool
		configPath string
		repo       string
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose whether the bridge can run here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr := config.Load(configPath)
			if cfgErr == nil && cmd.Flags().Changed("repo") {
				cfg.ProjectRoot = repo
			}
			if cfgErr == nil {
				cfgErr = cfg.Validate()
			}

			result := runDoctorChecks(cfg, cfgErr)

			if jsonMode {
				if err := renderDoctorJSON(stdout, result); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
			} else {
				renderDoctorHuman(stdout, result)
			}

			if result.Summary.Fail > 0 {
				return errReported
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&jsonMode, "json", false, "Emit machine-readable JSON to stdout")
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.devbridge/config.toml)")
	fs.StringVar(&repo, "repo", "", "Project root to check (default: from config)")
	return cmd
}

// runDoctorChecks evaluates every check in a fixed order. When the
// configuration could not be loaded the remaining checks use the defaults.
func runDoctorChecks(cfg *config.Config, cfgErr error) DoctorResult {
	checks := make([]DoctorCheck, 0, 5)
	checks = append(checks, evalConfig(cfgErr))
	if cfgErr != nil || cfg == nil {
		cfg = config.Default()
	}
	checks = append(checks, evalAgentExecutable(cfg))
	checks = append(checks, evalAgentBaseURL(cfg))
	checks = append(checks, evalVCSExecutable(cfg))
	checks = append(checks, evalWorkTree(cfg))

	return DoctorResult{Version: "1", Checks: checks, Summary: summarize(checks)}
}

func evalConfig(err error) DoctorCheck {
	check := DoctorCheck{ID: checkIDConfig}
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Configuration error: %v", err)
		check.NextAction = "Fix the config file or DEVBRIDGE_* environment variables and rerun doctor."
		return check
	}
	check.Status = statusPass
	check.Message = "Configuration loaded."
	check.NextAction = "No action required."
	return check
}

func evalAgentExecutable(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDAgent}

	path, err := doctorLookPath(cfg.Agent.Executable)
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("%s command not found (%s).", cfg.Agent.DisplayName, cfg.Agent.Executable)
		check.NextAction = fmt.Sprintf("Install %s and make sure `%s` is on PATH, or set agent.executable.", cfg.Agent.DisplayName, cfg.Agent.Executable)
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("%s found at %s.", cfg.Agent.DisplayName, path)
	check.NextAction = "No action required."
	return check
}

func evalAgentBaseURL(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDAgentBaseURL}

	if cfg.Agent.BaseURL == "" {
		check.Status = statusWarn
		check.Message = fmt.Sprintf("No base URL override; %s is inherited from the environment.", cfg.Agent.BaseURLEnv)
		check.NextAction = "Set agent.base_url if the agent must talk to a proxy."
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("Agent will use %s=%s.", cfg.Agent.BaseURLEnv, cfg.Agent.BaseURL)
	check.NextAction = "No action required."
	return check
}

func evalVCSExecutable(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDVCS}

	path, err := doctorLookPath(cfg.VCS.Executable)
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("%s not found on PATH.", cfg.VCS.Executable)
		check.NextAction = "Install git or set vcs.executable."
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("%s found at %s.", cfg.VCS.Executable, path)
	check.NextAction = "No action required."
	return check
}

func evalWorkTree(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDWorkTree}

	if !doctorIsWorkTree(cfg.VCS.Executable, cfg.ProjectRoot) {
		check.Status = statusFail
		check.Message = fmt.Sprintf("%s is not inside a git work tree.", cfg.ProjectRoot)
		check.NextAction = "Run `git init` in the project or point --repo at an existing repository."
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("%s is a git work tree.", cfg.ProjectRoot)
	check.NextAction = "No action required."
	return check
}

// renderDoctorJSON writes only the JSON document, so stdout stays parseable.
func renderDoctorJSON(w io.Writer, result DoctorResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderDoctorHuman(w io.Writer, result DoctorResult) {
	fmt.Fprintf(w, "\ndevbridge doctor\n================\n\n")
	for _, c := range result.Checks {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(c.Status), c.ID, c.Message)
		if c.Status != statusPass {
			fmt.Fprintf(w, "    -> %s\n", c.NextAction)
		}
	}
	fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d failures\n\n",
		result.Summary.Pass, result.Summary.Warn, result.Summary.Fail)
}

var statusIcons = map[string]string{
	statusPass: "[PASS]",
	statusWarn: "[WARN]",
	statusFail: "[FAIL]",
}

func statusIcon(status string) string {
	if icon, ok := statusIcons[status]; ok {
		return icon
	}
	return "[????]"
}
