package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ExportEnvFile writes a dotenv file that points a service at the bootstrapped
// parameters: APP_ENV, AWS_REGION and one *_SSM_PARAM line per binding. The
// config loader resolves those lines at startup, so no secret value is ever
// written to disk.
func ExportEnvFile(path, env, region string, bindings []Binding) error {
	values := map[string]string{
		"APP_ENV":    env,
		"AWS_REGION": region,
	}
	for _, b := range bindings {
		values[b.EnvVar+"_SSM_PARAM"] = b.Path
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
