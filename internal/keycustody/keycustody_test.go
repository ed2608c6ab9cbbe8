package keycustody

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	_, priv, err := GenerateAgentKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	sealed, err := Seal(priv, "correct horse battery staple")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := Unseal(sealed, "correct horse battery staple")
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if !priv.Equal(got) {
		t.Fatal("unsealed key differs from the original")
	}
}

func TestUnseal_WrongPassphrase(t *testing.T) {
	_, priv, err := GenerateAgentKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sealed, err := Seal(priv, "right")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Unseal(sealed, "wrong"); !errors.Is(err, ErrBadSeal) {
		t.Fatalf("got %v, want ErrBadSeal", err)
	}
}

func TestUnseal_TamperedCiphertext(t *testing.T) {
	_, priv, err := GenerateAgentKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sealed, err := Seal(priv, "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	raw, _ := hex.DecodeString(sealed.Ciphertext)
	raw[0] ^= 0xff
	sealed.Ciphertext = hex.EncodeToString(raw)

	if _, err := Unseal(sealed, "pw"); !errors.Is(err, ErrBadSeal) {
		t.Fatalf("got %v, want ErrBadSeal", err)
	}
}

func TestSeal_FreshNoncePerSeal(t *testing.T) {
	_, priv, err := GenerateAgentKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	a, err := Seal(priv, "pw")
	if err != nil {
		t.Fatalf("seal a: %v", err)
	}
	b, err := Seal(priv, "pw")
	if err != nil {
		t.Fatalf("seal b: %v", err)
	}
	if a.Nonce == b.Nonce {
		t.Error("two seals reused a nonce")
	}
	if a.Ciphertext == b.Ciphertext {
		t.Error("two seals produced identical ciphertext")
	}
	if a.PublicKey != b.PublicKey {
		t.Error("public half should be stable across seals")
	}
}

func TestVerify(t *testing.T) {
	pub, priv, err := GenerateAgentKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	msg := []byte("spend 50000 from vs-abc")
	sig := ed25519.Sign(priv, msg)

	ok, err := Verify(hex.EncodeToString(pub), msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("valid signature rejected")
	}

	ok, err = Verify(hex.EncodeToString(pub), []byte("different message"), sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("forged signature accepted")
	}
}

func TestVerify_BadKey(t *testing.T) {
	if _, err := Verify("zz", []byte("m"), []byte("s")); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := Verify("abcd", []byte("m"), []byte("s")); err == nil {
		t.Fatal("expected error for short key")
	}
}
