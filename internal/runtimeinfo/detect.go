package runtimeinfo

import (
	"os"
)

// EnvLookup matches os.LookupEnv's signature so tests can substitute a fake
// environment.
type EnvLookup func(key string) (string, bool)

// detectEnvironment classifies the execution environment from well-known
// environment variables set by common container, orchestration, serverless,
// and CI platforms.
func detectEnvironment(lookup EnvLookup) (container, orchestrator, serverless, ci string, extra map[string]string) {
	extra = map[string]string{}

	switch {
	case has(lookup, "ECS_CONTAINER_METADATA_URI_V4"), has(lookup, "ECS_CONTAINER_METADATA_URI"):
		container = "aws-ecs"
		if v, ok := lookup("AWS_EXECUTION_ENV"); ok {
			extra["aws_execution_env"] = v
		}
	case has(lookup, "KUBERNETES_SERVICE_HOST"):
		orchestrator = "kubernetes"
		if v, ok := lookup("KUBERNETES_SERVICE_HOST"); ok {
			extra["kubernetes_service_host"] = v
		}
	case dockerEnvFileExists():
		container = "docker"
	}

	switch {
	case has(lookup, "AWS_LAMBDA_FUNCTION_NAME"):
		serverless = "aws-lambda"
		if v, ok := lookup("AWS_LAMBDA_FUNCTION_VERSION"); ok {
			extra["aws_lambda_function_version"] = v
		}
	case has(lookup, "FUNCTION_NAME") && has(lookup, "FUNCTION_REGION"):
		serverless = "gcp-cloud-functions"
	case has(lookup, "WEBSITE_INSTANCE_ID"):
		serverless = "azure-functions"
	}

	switch {
	case has(lookup, "CODEBUILD_BUILD_ID"):
		ci = "aws-codebuild"
	case has(lookup, "GITHUB_ACTIONS"):
		ci = "github-actions"
	case has(lookup, "GITLAB_CI"):
		ci = "gitlab-ci"
	case has(lookup, "CIRCLECI"):
		ci = "circleci"
	case has(lookup, "JENKINS_URL"):
		ci = "jenkins"
	case has(lookup, "TRAVIS"):
		ci = "travis"
	case has(lookup, "CI"):
		ci = "generic"
	}

	return container, orchestrator, serverless, ci, extra
}

func has(lookup EnvLookup, key string) bool {
	v, ok := lookup(key)
	return ok && v != ""
}

// dockerEnvFileExists is a var so tests can stub it without depending on the
// test host's own container status.
var dockerEnvFileExists = func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
