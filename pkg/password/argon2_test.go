package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery", DefaultParams())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := Verify("correct horse battery", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("matching password rejected")
	}

	ok, err = Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := Hash("correct horse battery", DefaultParams())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash("correct horse battery", DefaultParams())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	malformed := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=2,p=2$notbase64!!$AAAA",
		"$bcrypt$v=19$m=65536,t=2,p=2$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
		"$argon2id$v=12$m=65536,t=2,p=2$c2FsdHNhbHRzYWx0c2FsdA$AAAA",
	}

	for _, h := range malformed {
		if ok, err := Verify("anything", h); err == nil || ok {
			t.Fatalf("Verify(%q) accepted malformed hash (ok=%v err=%v)", h, ok, err)
		}
	}
}
