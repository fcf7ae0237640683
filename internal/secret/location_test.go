package secret

import (
	"testing"

	"github.com/tomtom215/procsupervisor/internal/task"
)

func TestParseLocationExplicitProvider(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("ENV:DB_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderEnv || loc.Address != "DB_PASSWORD" {
		t.Errorf("got provider=%s address=%s", loc.Provider, loc.Address)
	}
}

func TestParseLocationFormatAndJSONPath(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("FILE:/etc/app/config.json!json|JP:$.db.password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderFile {
		t.Errorf("got provider %s", loc.Provider)
	}
	if loc.Address != "/etc/app/config.json" {
		t.Errorf("got address %s", loc.Address)
	}
	if loc.Format != "json" {
		t.Errorf("got format %s", loc.Format)
	}
	if loc.JSONPath != "$.db.password" {
		t.Errorf("got jsonpath %s", loc.JSONPath)
	}
}

func TestParseLocationFileURLPrefix(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("file:///etc/secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderFile || loc.Address != "/etc/secret" {
		t.Errorf("got provider=%s address=%s", loc.Provider, loc.Address)
	}
}

func TestParseLocationDefaultsToFile(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("/opt/app/creds.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderFile || loc.Address != "/opt/app/creds.txt" {
		t.Errorf("got provider=%s address=%s", loc.Provider, loc.Address)
	}
}

func TestParseLocationAutoDetectsSecretsManagerARN(t *testing.T) {
	t.Parallel()

	addr := "arn:aws:secretsmanager:us-east-1:123456789012:secret:prod/db-AbCdEf"
	loc, err := ParseLocation(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderRemoteSecretStore {
		t.Errorf("got provider %s", loc.Provider)
	}
	if loc.Address != addr {
		t.Errorf("got address %s", loc.Address)
	}
}

func TestParseLocationAutoDetectsSSM(t *testing.T) {
	t.Parallel()

	loc, err := ParseLocation("ssm:/prod/db/password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Provider != task.ProviderRemoteParameterStore {
		t.Errorf("got provider %s", loc.Provider)
	}
}

func TestParseLocationEmptyAddressErrors(t *testing.T) {
	t.Parallel()

	if _, err := ParseLocation("ENV:"); err == nil {
		t.Fatal("expected error for empty address")
	}
}
