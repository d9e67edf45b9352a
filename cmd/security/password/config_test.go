package password

import (
	"errors"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"UNILEAP_PASSWORD_MIN_LEN", "UNILEAP_PASSWORD_MAX_LEN", "UNILEAP_PASSWORD_REJECT_VERY_WEAK",
		"UNILEAP_ARGON2_MEMORY_KIB", "UNILEAP_ARGON2_ITERATIONS", "UNILEAP_ARGON2_PARALLELISM",
		"UNILEAP_ARGON2_SALT_LEN", "UNILEAP_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	def := DefaultConfig()
	if cfg != def {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Policy.MinLength != 6 || cfg.Policy.MaxLength != 256 {
		t.Fatalf("unexpected default policy %+v", cfg.Policy)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("UNILEAP_PASSWORD_MIN_LEN", "10")
	t.Setenv("UNILEAP_PASSWORD_MAX_LEN", "200")
	t.Setenv("UNILEAP_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("UNILEAP_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("UNILEAP_ARGON2_ITERATIONS", "4")
	t.Setenv("UNILEAP_ARGON2_PARALLELISM", "2")
	t.Setenv("UNILEAP_ARGON2_SALT_LEN", "24")
	t.Setenv("UNILEAP_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"min above max":  {"UNILEAP_PASSWORD_MIN_LEN", "300"},
		"memory too low": {"UNILEAP_ARGON2_MEMORY_KIB", "1024"},
		"not a number":   {"UNILEAP_ARGON2_ITERATIONS", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
