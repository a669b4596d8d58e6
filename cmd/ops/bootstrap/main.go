// Package main implements the operator bootstrap for caseflow.
//
// It verifies the active AWS identity, then walks the parameter inventory:
// prompted secrets (Notify key, case store token, ledger database URL) are
// validated before being stored, and the callback service secret is generated
// together with the bcrypt hash the API authenticates against. Every value
// lands under /caseflow/{env}/ in SSM Parameter Store.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev
//	go run ./cmd/ops/bootstrap --env=prod --profile=caseflow-prod --export-env=.env.prod
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// identity is the caller resolved through STS.
type identity struct {
	Account string
	ARN     string
}

type stsClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func main() {
	envFlag := flag.String("env", "", "Target environment (dev/staging/prod) [required]")
	profileFlag := flag.String("profile", "", "AWS CLI profile")
	regionFlag := flag.String("region", "eu-west-2", "AWS region")
	endpointFlag := flag.String("endpoint-url", os.Getenv("AWS_ENDPOINT_URL"), "Override the AWS endpoint, e.g. LocalStack")
	skipOptional := flag.Bool("skip-optional", false, "Skip optional parameters without prompting")
	exportEnv := flag.String("export-env", "", "Write a dotenv file with *_SSM_PARAM bindings to this path")
	flag.Parse()

	if !validEnvironments[*envFlag] {
		fmt.Fprintf(os.Stderr, "error: --env must be dev, staging or prod (got %q)\n\n", *envFlag)
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadAWS(ctx, *profileFlag, *regionFlag, *endpointFlag)
	if err != nil {
		logger.Error("loading AWS config failed", "error", err)
		os.Exit(1)
	}

	id, err := verifyIdentity(ctx, sts.NewFromConfig(cfg))
	if err != nil {
		logger.Error("identity check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("AWS identity verified", "account_id", id.Account, "arn", id.ARN, "region", *regionFlag)

	stdin := bufio.NewReader(os.Stdin)
	if *envFlag == "prod" && !confirmProduction(stdin, os.Stderr, id) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		return
	}

	runner := &BootstrapRunner{
		SSM:          NewSSMManager(ssm.NewFromConfig(cfg), *envFlag, logger),
		Inventory:    BuildInventory(NewValidator(PgxConnector{})),
		Stdin:        stdin,
		Stderr:       os.Stderr,
		SkipOptional: *skipOptional,
	}
	bindings, err := runner.Run(ctx)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	if *exportEnv != "" {
		if err := ExportEnvFile(*exportEnv, *envFlag, *regionFlag, bindings); err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		logger.Info("dotenv bindings exported", "path", *exportEnv, "bindings", len(bindings))
	}
	logger.Info("bootstrap completed", "env", *envFlag, "account", id.Account)
}

func loadAWS(ctx context.Context, profile, region, endpoint string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return cfg, nil
}

func verifyIdentity(ctx context.Context, client stsClient) (identity, error) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := client.GetCallerIdentity(callCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return identity{}, fmt.Errorf("sts GetCallerIdentity: %w", err)
	}
	return identity{Account: aws.ToString(out.Account), ARN: aws.ToString(out.Arn)}, nil
}

// confirmProduction requires the operator to type "yes".
func confirmProduction(in io.Reader, out io.Writer, id identity) bool {
	fmt.Fprintln(out, "\n  WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprintf(out, "  Account: %s\n  ARN:     %s\n\n", id.Account, id.ARN)
	fmt.Fprint(out, "Type 'yes' to continue: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}
