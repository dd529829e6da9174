package config

import "testing"

func TestLoadDoesNotInjectSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty JWT_SECRET when unset, got %q", cfg.JWTSecret)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation to fail without a secret")
	}
}

func TestLoadBuildsDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "pos")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "pos")
	t.Setenv("DB_PORT", "")

	cfg := Load()
	want := "host=db user=pos password=pw dbname=pos port=5432 sslmode=disable"
	if cfg.DatabaseURL != want {
		t.Fatalf("expected %q, got %q", want, cfg.DatabaseURL)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("SEQUENCE_MAX_ATTEMPTS", "abc")
	t.Setenv("TOKEN_TTL_HOURS", "-3")

	cfg := Load()
	if cfg.SequenceMaxAttempts != 5 {
		t.Fatalf("expected default attempts 5, got %d", cfg.SequenceMaxAttempts)
	}
	if cfg.TokenTTLHours != 24 {
		t.Fatalf("expected default ttl 24, got %d", cfg.TokenTTLHours)
	}
}

func TestLocationDefaultsToLocal(t *testing.T) {
	t.Setenv("TIMEZONE", "")
	loc, err := Load().Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Local" {
		t.Fatalf("expected Local, got %s", loc)
	}
}
