package common

import (
	"strings"
	"testing"
)

func TestParseShards(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []ServerShard
		wantErr bool
	}{
		{
			name:  "single local shard",
			input: "1=local",
			want:  []ServerShard{{ShardID: 1, Type: ShardTypeLocal}},
		},
		{
			name:  "mixed with spaces",
			input: "1=local, 200 = replicated",
			want:  []ServerShard{{ShardID: 1, Type: ShardTypeLocal}, {ShardID: 200, Type: ShardTypeReplicated}},
		},
		{name: "missing type", input: "1", wantErr: true},
		{name: "bad id", input: "one=local", wantErr: true},
		{name: "unknown type", input: "1=lstore", wantErr: true},
		{name: "duplicate id", input: "1=local,1=replicated", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShards(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseShards(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseShards(%q) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseShards(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("shard %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := ParseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	if err != nil {
		t.Fatalf("ParseClusterMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if addr := members[ReplicaIDOf("node-2")]; addr != "localhost:63002" {
		t.Errorf("node-2 = %q, want %q", addr, "localhost:63002")
	}

	for _, bad := range []string{"node-1", "node-1=", "=localhost:1"} {
		if _, err := ParseClusterMembers(bad); err == nil {
			t.Errorf("ParseClusterMembers(%q) succeeded, want error", bad)
		}
	}
}

func TestServerConfig(t *testing.T) {
	cfg := ServerConfig{
		Shards:         []ServerShard{{ShardID: 3, Type: ShardTypeReplicated}},
		ReplicaID:      ReplicaIDOf("node-1"),
		ClusterMembers: map[uint64]string{ReplicaIDOf("node-1"): "localhost:63001"},
		RTTMillisecond: 100,
		DataDir:        "data",
		MaxInputPorts:  8,
		Endpoint:       "localhost:8080",
		LogLevel:       "info",
	}

	if !cfg.HasReplicatedShard() {
		t.Errorf("HasReplicatedShard() = false, want true")
	}

	sb := cfg.SandboxConfig(3)
	if sb.Name != "shard-3" {
		t.Errorf("sandbox name = %q, want %q", sb.Name, "shard-3")
	}
	if sb.MaxInputPorts != 8 {
		t.Errorf("MaxInputPorts = %d, want 8", sb.MaxInputPorts)
	}
	if sb.MaxOutputPorts == 0 {
		t.Errorf("MaxOutputPorts not defaulted")
	}

	nh := cfg.ToNodeHostConfig()
	if nh.RaftAddress != "localhost:63001" {
		t.Errorf("RaftAddress = %q, want %q", nh.RaftAddress, "localhost:63001")
	}
	if rc := cfg.ToDragonboatConfig(3); rc.ShardID != 3 || rc.ReplicaID != cfg.ReplicaID {
		t.Errorf("ToDragonboatConfig() = %+v", rc)
	}

	out := cfg.String()
	for _, want := range []string{"RAFT PARAMETERS", "localhost:63001", "replicated"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() does not contain %q", want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error", ""} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("ParseLogLevel(%q) error = %v", level, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("ParseLogLevel(%q) succeeded, want error", "verbose")
	}
}
