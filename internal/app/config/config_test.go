package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.ChainID != defaultChainID {
		t.Fatalf("expected default chain id, got %d", cfg.ChainID)
	}
	if cfg.PlatformFee != 0 || cfg.StrictMessageIDs {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFeeValidation(t *testing.T) {
	t.Setenv("LEDGER_PLATFORM_FEE_BPS", "1500")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for fee above 1000 bps")
	}

	t.Setenv("LEDGER_PLATFORM_FEE_BPS", "250")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for fee without a collector")
	}

	t.Setenv("LEDGER_FEE_COLLECTOR", "0xcollector")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PlatformFee != 250 || cfg.FeeCollector != "0xcollector" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadChainAndStrictMode(t *testing.T) {
	t.Setenv("LEDGER_CHAIN_ID", "7")
	t.Setenv("LEDGER_STRICT_MESSAGE_IDS", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 7 || !cfg.StrictMessageIDs {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("LEDGER_CHAIN_ID", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative chain id")
	}
}
