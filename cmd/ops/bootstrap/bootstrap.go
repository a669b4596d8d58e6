package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParameterType selects the SSM storage type.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// InputSource describes where a step's value comes from.
type InputSource int

const (
	SourcePrompt InputSource = iota
	SourceGenerated
	SourceFixed
)

// BootstrapStep is one parameter the services expect to find in SSM.
type BootstrapStep struct {
	Label string
	// SSMKey is the category/key below /caseflow/{env}/.
	SSMKey string
	// EnvVar is the variable the loader fills from the parameter; the
	// exported binding is EnvVar + "_SSM_PARAM". Empty means not exported.
	EnvVar     string
	ParamType  ParameterType
	Source     InputSource
	FixedValue string
	Prompt     string
	ValidateFn func(ctx context.Context, input string) ValidationResult
	Optional   bool

	// HashKey and HashEnvVar, when set on a generated step, also store the
	// bcrypt hash of the generated value.
	HashKey    string
	HashEnvVar string
}

const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory lists the parameters in the order the operator sees them.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			Label:      "Notify API Key",
			SSMKey:     "notify/api_key",
			EnvVar:     "NOTIFY_API_KEY",
			ParamType:  ParamSecureString,
			Source:     SourcePrompt,
			Prompt:     "Paste the GOV.UK Notify API key (name-serviceid-secret):",
			ValidateFn: v.ValidateNotifyKey,
		},
		{
			Label:      "Case Store S2S Token",
			SSMKey:     "case_store/s2s_token",
			EnvVar:     "CASE_STORE_S2S_TOKEN",
			ParamType:  ParamSecureString,
			Source:     SourcePrompt,
			Prompt:     "Paste the case store service token (or press Enter to skip):",
			ValidateFn: v.ValidateMinLength(16, "service token"),
			Optional:   true,
		},
		{
			Label:      "Delivery Ledger Database URL",
			SSMKey:     "database/url",
			EnvVar:     "DATABASE_URL",
			ParamType:  ParamSecureString,
			Source:     SourcePrompt,
			Prompt:     "Paste the postgres:// URL for the delivery ledger (or press Enter to skip):",
			ValidateFn: v.ValidateDatabaseURL,
			Optional:   true,
		},
		{
			Label:      "Callback Service Secret",
			SSMKey:     "auth/s2s_secret",
			ParamType:  ParamSecureString,
			Source:     SourceGenerated,
			HashKey:    "auth/s2s_secret_hash",
			HashEnvVar: "S2S_SECRET_HASH",
		},
		{
			Label:      "Notify Templates",
			SSMKey:     "notify/templates",
			EnvVar:     "NOTIFY_TEMPLATES_JSON",
			ParamType:  ParamString,
			Source:     SourceFixed,
			FixedValue: "{}",
		},
	}
}

// Binding maps one *_SSM_PARAM variable to the path it resolves from.
type Binding struct {
	EnvVar string
	Path   string
}

type stepResult struct {
	Label    string
	Action   string // written, generated, overwritten, skipped, kept
	Bindings []Binding
}

// BootstrapRunner walks the inventory against one environment.
type BootstrapRunner struct {
	SSM       *SSMManager
	Inventory []BootstrapStep
	Stdin     io.Reader
	Stderr    io.Writer

	// SkipOptional skips optional steps without prompting.
	SkipOptional bool

	scanner *bufio.Scanner
}

// Run processes every step and returns the SSM bindings that now resolve.
func (r *BootstrapRunner) Run(ctx context.Context) ([]Binding, error) {
	var results []stepResult
	for i, step := range r.Inventory {
		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(r.Inventory), step.Label)

		res, err := r.processStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %q failed: %w", step.Label, err)
		}
		results = append(results, res)
	}
	r.printSummary(results)

	var bindings []Binding
	for _, res := range results {
		bindings = append(bindings, res.Bindings...)
	}
	return bindings, nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMKey)
	res := stepResult{Label: step.Label}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, err
	}

	if step.Optional && r.SkipOptional {
		fmt.Fprintln(r.Stderr, "  Skipped (--skip-optional)")
		res.Action = "skipped"
		if exists {
			res.Bindings = r.bindingsFor(step)
		}
		return res, nil
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptChoice("  [S]kip or [O]verwrite? ", "skip", "overwrite")
		if err != nil {
			return res, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintln(r.Stderr, "  Kept existing value.")
			res.Action = "kept"
			res.Bindings = r.bindingsFor(step)
			return res, nil
		}
	}

	var value string
	switch step.Source {
	case SourcePrompt:
		value, err = r.promptAndValidate(ctx, step)
		if errors.Is(err, errSkipped) {
			fmt.Fprintln(r.Stderr, "  Skipped.")
			res.Action = "skipped"
			return res, nil
		}
		if err != nil {
			return res, err
		}
	case SourceGenerated:
		value, err = GenerateSecureToken()
		if err != nil {
			return res, err
		}
		fmt.Fprintf(r.Stderr, "  Auto-generated (%d chars)\n", len(value))
	case SourceFixed:
		value = step.FixedValue
		fmt.Fprintf(r.Stderr, "  Using fixed value: %s\n", value)
	}

	if err := r.write(ctx, step.ParamType, path, value, exists); err != nil {
		return res, err
	}
	if step.HashKey != "" {
		hash, err := HashServiceSecret(value)
		if err != nil {
			return res, err
		}
		hashPath := r.SSM.SSMPath(step.HashKey)
		hashExists, err := r.SSM.ParameterExists(ctx, hashPath)
		if err != nil {
			return res, err
		}
		if err := r.SSM.PutSecret(ctx, hashPath, hash, hashExists); err != nil {
			return res, err
		}
	}

	switch {
	case exists:
		res.Action = "overwritten"
	case step.Source == SourceGenerated:
		res.Action = "generated"
	default:
		res.Action = "written"
	}
	res.Bindings = r.bindingsFor(step)
	return res, nil
}

func (r *BootstrapRunner) write(ctx context.Context, t ParameterType, path, value string, overwrite bool) error {
	if t == ParamSecureString {
		return r.SSM.PutSecret(ctx, path, value, overwrite)
	}
	return r.SSM.PutString(ctx, path, value)
}

func (r *BootstrapRunner) bindingsFor(step BootstrapStep) []Binding {
	var out []Binding
	if step.EnvVar != "" {
		out = append(out, Binding{EnvVar: step.EnvVar, Path: r.SSM.SSMPath(step.SSMKey)})
	}
	if step.HashEnvVar != "" {
		out = append(out, Binding{EnvVar: step.HashEnvVar, Path: r.SSM.SSMPath(step.HashKey)})
	}
	return out
}

// promptAndValidate reads until the validator accepts or maxRetries is hit.
// Values are never echoed back.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		fmt.Fprint(r.Stderr, "  > ")
		input, err := r.scanLine()
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.Label, err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			choice, err := r.promptChoice("  No input received. [S]kip or [R]etry? ", "skip", "retry")
			if err != nil {
				return "", err
			}
			if choice == "skip" {
				return "", errSkipped
			}
			attempt--
			continue
		}
		if step.ParamType == ParamSecureString {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn != nil {
			vr := step.ValidateFn(ctx, input)
			if !vr.Valid {
				fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
				continue
			}
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		}
		return input, nil
	}
	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.Label)
}

// promptChoice loops until the operator picks one of the two options, by
// first letter or in full.
func (r *BootstrapRunner) promptChoice(prompt, first, second string) (string, error) {
	for {
		fmt.Fprint(r.Stderr, prompt)
		line, err := r.scanLine()
		if err != nil {
			return "", err
		}
		switch choice := strings.ToLower(strings.TrimSpace(line)); choice {
		case first, first[:1]:
			return first, nil
		case second, second[:1]:
			return second, nil
		}
		fmt.Fprintf(r.Stderr, "  Please enter %q or %q.\n", first, second)
	}
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	fmt.Fprintln(r.Stderr, "\n------------------------------------------------------------")
	fmt.Fprintln(r.Stderr, "  Bootstrap Summary")
	fmt.Fprintln(r.Stderr, "------------------------------------------------------------")
	for _, res := range results {
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}
	fmt.Fprintln(r.Stderr, "------------------------------------------------------------")
}
