package crypto

import (
	"strings"
	"testing"
)

func TestParseAlgorithm(t *testing.T) {
	cases := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{" KECCAK256 ", Keccak256, false},
		{"blake2b-256", Blake2b, false},
		{"md5", "", true},
	}
	for _, tc := range cases {
		got, err := ParseAlgorithm(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAlgorithm(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAlgorithm(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSumKnownVectors(t *testing.T) {
	// Digests of the empty string.
	want := map[Algorithm]string{
		SHA256:    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Keccak256: "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Blake2b:   "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
	}
	for algo, digest := range want {
		if got := algo.Sum(nil); got != digest {
			t.Errorf("%s(\"\") = %s, want %s", algo, got, digest)
		}
	}
}

func TestAlgorithmsDiffer(t *testing.T) {
	data := []byte("s1")
	seen := map[string]Algorithm{}
	for _, algo := range []Algorithm{SHA256, Keccak256, Blake2b} {
		d := algo.Sum(data)
		if !IsFingerprint(d) {
			t.Fatalf("%s digest %q is not a fingerprint", algo, d)
		}
		if other, ok := seen[d]; ok {
			t.Fatalf("%s and %s produced the same digest", algo, other)
		}
		seen[d] = algo
	}
}

func TestIsFingerprint(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	if !IsFingerprint(valid) {
		t.Error("expected valid fingerprint")
	}
	if IsFingerprint(strings.ToUpper(valid)) {
		t.Error("uppercase must be normalized first")
	}
	if !IsFingerprint(NormalizeFingerprint(" " + strings.ToUpper(valid) + " ")) {
		t.Error("normalized fingerprint should be valid")
	}
	if IsFingerprint(valid[:63]) {
		t.Error("short digest accepted")
	}
	if IsFingerprint(strings.Repeat("zz", 32)) {
		t.Error("non-hex digest accepted")
	}
}

func TestGenerateAndVerifySeed(t *testing.T) {
	seed, hash, err := GenerateSeed()
	if err != nil {
		t.Fatalf("GenerateSeed: %v", err)
	}
	if len(seed) != 64 {
		t.Errorf("seed length: got %d want 64", len(seed))
	}
	if !VerifySeed(seed, hash) {
		t.Error("seed does not match its commitment")
	}
	if VerifySeed(seed+"x", hash) {
		t.Error("tampered seed verified")
	}
}
