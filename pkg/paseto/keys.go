package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"

	"github.com/Alijeyrad/medcenter_backend/config"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, encrypted
	ModePublic Mode = "public" // v4.public, signed
)

// Keys holds the symmetric key for local mode or the key pair for public
// mode. A verify-only deployment may carry just the public key.
type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey
	Secret    *paseto.V4AsymmetricSecretKey
	Public    *paseto.V4AsymmetricPublicKey
}

// LoadKeys decodes the hex keys under authentication.paseto. An empty mode
// means local.
func LoadKeys(c config.PasetoConfig) (Keys, error) {
	switch Mode(c.Mode) {
	case "", ModeLocal:
		return loadLocal(strings.TrimSpace(c.LocalKeyHex))
	case ModePublic:
		return loadPublic(strings.TrimSpace(c.SecretKeyHex), strings.TrimSpace(c.PublicKeyHex))
	default:
		return Keys{}, ErrConfig{Msg: "authentication.paseto.mode must be local or public"}
	}
}

func loadLocal(hexKey string) (Keys, error) {
	if hexKey == "" {
		return Keys{}, ErrConfig{Msg: "authentication.paseto.local_key_hex is required in local mode"}
	}
	k, err := paseto.V4SymmetricKeyFromHex(hexKey)
	if err != nil {
		return Keys{}, ErrConfig{Msg: "invalid local_key_hex: " + err.Error()}
	}
	return Keys{Mode: ModeLocal, Symmetric: &k}, nil
}

func loadPublic(secretHex, publicHex string) (Keys, error) {
	out := Keys{Mode: ModePublic}
	if secretHex != "" {
		sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(secretHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "invalid secret_key_hex: " + err.Error()}
		}
		pk := sk.Public()
		out.Secret, out.Public = &sk, &pk
	}
	if publicHex != "" {
		pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(publicHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "invalid public_key_hex: " + err.Error()}
		}
		out.Public = &pk
	}
	if out.Public == nil {
		return Keys{}, ErrConfig{Msg: "public mode needs secret_key_hex or public_key_hex"}
	}
	return out, nil
}

func NewLocalKeys() Keys {
	k := paseto.NewV4SymmetricKey()
	return Keys{Mode: ModeLocal, Symmetric: &k}
}

func NewPublicKeys() Keys {
	sk := paseto.NewV4AsymmetricSecretKey()
	pk := sk.Public()
	return Keys{Mode: ModePublic, Secret: &sk, Public: &pk}
}
