package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestChainConfig_MissingDeployEnv(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChainConfig
		want []string
	}{
		{
			name: "all present",
			cfg:  ChainConfig{PrivateKey: "0xabc", FactoryAddress: "0xdef", RpcUrl: "http://node"},
			want: nil,
		},
		{
			name: "all missing",
			cfg:  ChainConfig{},
			want: []string{EnvPrivateKey, EnvFactoryAddress, EnvRpcUrl},
		},
		{
			name: "only factory missing",
			cfg:  ChainConfig{PrivateKey: "0xabc", RpcUrl: "http://node"},
			want: []string{EnvFactoryAddress},
		},
		{
			name: "blank values count as missing",
			cfg:  ChainConfig{PrivateKey: "  ", FactoryAddress: "0xdef", RpcUrl: ""},
			want: []string{EnvPrivateKey, EnvRpcUrl},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.MissingDeployEnv()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("MissingDeployEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecode_BindsDeploymentEnvNames(t *testing.T) {
	t.Setenv(EnvPrivateKey, "0x01")
	t.Setenv(EnvFactoryAddress, "0x0000000000000000000000000000000000000001")
	t.Setenv(EnvRpcUrl, "http://localhost:8545")
	t.Setenv(EnvIrlAgentsKey, "secret")

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Chain.PrivateKey != "0x01" || cfg.Chain.RpcUrl != "http://localhost:8545" {
		t.Fatalf("chain env not bound: %+v", cfg.Chain)
	}
	if cfg.Chain.FactoryAddress != "0x0000000000000000000000000000000000000001" {
		t.Fatalf("factory env not bound: %q", cfg.Chain.FactoryAddress)
	}
	if cfg.IrlAgents.APIKey != "secret" {
		t.Fatalf("irl agents key not bound: %q", cfg.IrlAgents.APIKey)
	}
	if cfg.IrlAgents.QuerierId != 1000 || cfg.IrlAgents.Token != "G$" {
		t.Fatalf("unexpected task defaults: %+v", cfg.IrlAgents)
	}
	if len(cfg.Chain.MissingDeployEnv()) != 0 {
		t.Fatalf("expected no missing env, got %v", cfg.Chain.MissingDeployEnv())
	}
}
