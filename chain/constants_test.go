package chain

import "testing"

func TestSupported(t *testing.T) {
	if !Supported(SepoliaChainID) {
		t.Fatal("sepolia should be supported")
	}
	if Supported(424242) {
		t.Fatal("unknown chain reported as supported")
	}
	if Name(EthChainID) != Eth {
		t.Fatalf("name = %s", Name(EthChainID))
	}
}

func TestUniformAddress(t *testing.T) {
	addr, err := UniformAddress("0xAbC1230000000000000000000000000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if addr != "0xabc1230000000000000000000000000000000001" {
		t.Fatalf("got %s", addr)
	}

	for _, bad := range []string{"", "0x", "nothex", "0x12345"} {
		if _, err := UniformAddress(bad); err == nil {
			t.Fatalf("address %q accepted", bad)
		}
	}
}
