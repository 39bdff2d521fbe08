package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yaya56vv/cortex/pkg/models"
)

func newOrchestrateCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
		mode      string
		dryRun    bool
		yes       bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "orchestrate <prompt>",
		Short: "Send one prompt to a running kernel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				serverURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
			}
			client := &http.Client{Timeout: 5 * time.Minute}

			req := models.OrchestrateRequest{
				Prompt:        strings.Join(args, " "),
				SessionID:     sessionID,
				ExecutionMode: models.ExecutionMode(mode),
				DryRun:        dryRun,
			}
			resp, err := postOrchestrate(client, serverURL, req)
			if err != nil {
				return err
			}

			// A gated plan can be confirmed interactively; otherwise the
			// confirmation request is left to the caller.
			if resp.RequiresConfirmation && !dryRun && confirmWanted(cmd, resp, yes) {
				resp, err = postOrchestrate(client, serverURL, models.OrchestrateRequest{
					SessionID:     sessionID,
					ExecutionMode: models.ExecutionMode(mode),
					Confirm:       true,
				})
				if err != nil {
					return err
				}
			}

			return printResponse(cmd, resp, asJSON)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "kernel base URL (default from config)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "session id")
	cmd.Flags().StringVarP(&mode, "mode", "m", "auto", "execution mode: auto, plan_only or step_by_step")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the plan without executing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm gated plans without prompting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response JSON")
	return cmd
}

func postOrchestrate(client *http.Client, baseURL string, req models.OrchestrateRequest) (*models.OrchestrateResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpResp, err := client.Post(strings.TrimRight(baseURL, "/")+"/orchestrate", "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("kernel unreachable at %s: %w", baseURL, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(httpResp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = httpResp.Status
		}
		return nil, fmt.Errorf("kernel rejected the request: %s", e.Error)
	}

	var resp models.OrchestrateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// confirmWanted decides whether to send the follow-up confirmation: --yes
// always confirms, otherwise an interactive terminal is asked.
func confirmWanted(cmd *cobra.Command, resp *models.OrchestrateResponse, yes bool) bool {
	if yes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
	printPlan(cmd, resp.Plan)
	fmt.Fprint(cmd.OutOrStdout(), "Run this plan? [y/N] ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	}
	return false
}

func printPlan(cmd *cobra.Command, plan *models.Plan) {
	if plan == nil || len(plan.Steps) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Plan:")
	for i, step := range plan.Steps {
		args, _ := json.Marshal(step.Args)
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s.%s %s\n", i+1, step.Tool, step.Action, args)
	}
}

func printResponse(cmd *cobra.Command, resp *models.OrchestrateResponse, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.DryRun != nil {
		fmt.Fprintln(out, resp.Response)
		printPlan(cmd, resp.Plan)
		return nil
	}
	fmt.Fprintln(out, resp.Response)
	for _, r := range resp.ExecutionResults {
		status := string(r.Status)
		if r.Status == models.StepError {
			status = fmt.Sprintf("%s (%s)", r.Status, r.ErrorKind)
		}
		fmt.Fprintf(out, "  - %s.%s: %s\n", r.Step.Tool, r.Step.Action, status)
	}
	return nil
}
