package runtimeinfo

import "testing"

func fakeEnv(vals map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}
}

func TestDetectEnvironmentRecognizesECS(t *testing.T) {
	t.Parallel()

	container, _, _, _, _ := detectEnvironment(fakeEnv(map[string]string{
		"ECS_CONTAINER_METADATA_URI_V4": "http://169.254.170.2/v4",
	}))
	if container != "aws-ecs" {
		t.Errorf("container = %q, want aws-ecs", container)
	}
}

func TestDetectEnvironmentRecognizesKubernetes(t *testing.T) {
	t.Parallel()

	_, orchestrator, _, _, _ := detectEnvironment(fakeEnv(map[string]string{
		"KUBERNETES_SERVICE_HOST": "10.0.0.1",
	}))
	if orchestrator != "kubernetes" {
		t.Errorf("orchestrator = %q, want kubernetes", orchestrator)
	}
}

func TestDetectEnvironmentRecognizesLambda(t *testing.T) {
	t.Parallel()

	_, _, serverless, _, _ := detectEnvironment(fakeEnv(map[string]string{
		"AWS_LAMBDA_FUNCTION_NAME": "my-fn",
	}))
	if serverless != "aws-lambda" {
		t.Errorf("serverless = %q, want aws-lambda", serverless)
	}
}

func TestDetectEnvironmentRecognizesGitHubActionsCI(t *testing.T) {
	t.Parallel()

	_, _, _, ci, _ := detectEnvironment(fakeEnv(map[string]string{
		"GITHUB_ACTIONS": "true",
	}))
	if ci != "github-actions" {
		t.Errorf("ci = %q, want github-actions", ci)
	}
}

func TestDetectEnvironmentReturnsEmptyForBareMetal(t *testing.T) {
	orig := dockerEnvFileExists
	dockerEnvFileExists = func() bool { return false }
	defer func() { dockerEnvFileExists = orig }()

	container, orchestrator, serverless, ci, _ := detectEnvironment(fakeEnv(map[string]string{}))
	if container != "" || orchestrator != "" || serverless != "" || ci != "" {
		t.Errorf("expected all empty, got %q %q %q %q", container, orchestrator, serverless, ci)
	}
}
