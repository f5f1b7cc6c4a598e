package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// DefaultBits is the RSA key size used by Write.
const DefaultBits = 4096

// KeyPair holds an RSA key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the RSA private key in PEM-encoded PKCS#1 format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	publicKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  ssh.MarshalAuthorizedKey(publicKey),
	}, nil
}

// Write generates a key pair and stores it at path and path.pub. Existing
// files are never overwritten.
func Write(path string, bits int) (*KeyPair, error) {
	for _, p := range []string{path, path + ".pub"} {
		if _, err := os.Stat(p); err == nil {
			return nil, fmt.Errorf("refusing to overwrite existing key %s", p)
		}
	}

	pair, err := GenerateRSAKeyPair(bits)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, pair.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	// #nosec G306 -- public keys are meant to be readable
	if err := os.WriteFile(path+".pub", pair.PublicKey, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}
	return pair, nil
}

// PublicKeyFromPrivate derives the authorized_keys line of a PEM private key.
func PublicKeyFromPrivate(privateKeyPEM []byte) ([]byte, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return ssh.MarshalAuthorizedKey(signer.PublicKey()), nil
}

// LoadPublicKey returns the public key belonging to the private key file.
// A neighbouring .pub file wins; otherwise the key is derived.
func LoadPublicKey(privateKeyFile string) ([]byte, error) {
	// #nosec G304
	pub, err := os.ReadFile(privateKeyFile + ".pub")
	if err == nil {
		if _, _, _, _, perr := ssh.ParseAuthorizedKey(pub); perr != nil {
			return nil, fmt.Errorf("invalid public key %s.pub: %w", privateKeyFile, perr)
		}
		return pub, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	// #nosec G304
	priv, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return PublicKeyFromPrivate(priv)
}
