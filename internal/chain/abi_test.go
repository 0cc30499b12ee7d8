package chain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseABI_CompiledOutputAndPlainArray(t *testing.T) {
	compiled := []byte(`{"contractName":"Crowdfund","abi":` + CrowdfundABI + `}`)
	parsed, err := ParseABI(compiled)
	if err != nil {
		t.Fatalf("compiled output: %v", err)
	}
	if _, ok := parsed.Methods["donate"]; !ok {
		t.Fatal("donate missing from compiled output ABI")
	}

	plain, err := ParseABI([]byte(TokenABI))
	if err != nil {
		t.Fatalf("plain array: %v", err)
	}
	for _, m := range []string{"decimals", "balanceOf", "allowance", "approve"} {
		if _, ok := plain.Methods[m]; !ok {
			t.Errorf("%s missing from token ABI", m)
		}
	}
}

func TestLoadABI(t *testing.T) {
	embedded, err := LoadABI("", FactoryABI)
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if _, ok := embedded.Events[CrowdfundCreatedEvent]; !ok {
		t.Fatal("CrowdfundCreated missing from embedded factory ABI")
	}

	path := filepath.Join(t.TempDir(), "factory.json")
	if err := os.WriteFile(path, []byte(`{"abi":`+FactoryABI+`}`), 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := LoadABI(path, "")
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if _, ok := fromFile.Methods["getCrowdfunds"]; !ok {
		t.Fatal("getCrowdfunds missing from file ABI")
	}

	if _, err := LoadABI(filepath.Join(t.TempDir(), "missing.json"), FactoryABI); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateChainType(t *testing.T) {
	if err := validateChainType("celo"); err != nil {
		t.Fatalf("celo should be supported: %v", err)
	}
	if err := validateChainType("solana"); err == nil {
		t.Fatal("expected unsupported chain type error")
	}
}
