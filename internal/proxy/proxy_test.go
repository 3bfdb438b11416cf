package proxy

import "testing"

func TestExtractRPCMethod(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"single request", `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`, "eth_blockNumber"},
		{"batch request", `[{"jsonrpc":"2.0","method":"eth_blockNumber","id":1},{"jsonrpc":"2.0","method":"eth_chainId","id":2}]`, "batch"},
		{"empty body", ``, "unknown"},
		{"malformed json", `not json`, "unknown"},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, "unknown"},
		{"whitespace padded batch", "  \n[1,2,3]", "batch"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractRPCMethod([]byte(tc.body))
			if got != tc.want {
				t.Errorf("extractRPCMethod(%q) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestSectionName(t *testing.T) {
	if got := sectionName(sectionExecution); got != "execution" {
		t.Errorf("sectionName(exec) = %q, want execution", got)
	}
	if got := sectionName(sectionConsensus); got != "consensus" {
		t.Errorf("sectionName(cons) = %q, want consensus", got)
	}
}
