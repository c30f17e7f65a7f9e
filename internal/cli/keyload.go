package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/ethdeploy/internal/config"
	"github.com/mrz1836/ethdeploy/internal/keys"
)

// keyFlags select the signing key for sign and deploy. The key material
// itself is only ever read from the environment or a file, never argv.
type keyFlags struct {
	source string
	file   string
}

func (k *keyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&k.source, "key-source", "", "where to read the key: hex, file, mnemonic (default from config)")
	cmd.Flags().StringVar(&k.file, "key-file", "", "age-encrypted key file (default from config)")
}

// spec resolves the key source from flags, then the environment and config.
func (k *keyFlags) spec() (keys.Spec, error) {
	source := cfg.Keys.Source
	if k.source != "" {
		source = k.source
	}
	if source == "" {
		source = detectKeySource()
	}
	src, err := keys.ParseSource(source)
	if err != nil {
		return keys.Spec{}, err
	}

	file := cfg.Keys.File
	if k.file != "" {
		file = k.file
	}

	return keys.Spec{
		Source:             src,
		Hex:                os.Getenv(config.EnvPrivateKey),
		File:               config.ExpandPath(file),
		Mnemonic:           os.Getenv(config.EnvMnemonic),
		MnemonicPassphrase: os.Getenv(config.EnvMnemonicPassphrase),
		Account:            cfg.Keys.Account,
		Index:              cfg.Keys.Index,
	}, nil
}

// detectKeySource picks a source when none is configured: a key in the
// environment wins, then a mnemonic, then the key file.
func detectKeySource() string {
	switch {
	case os.Getenv(config.EnvPrivateKey) != "":
		return string(keys.SourceHex)
	case os.Getenv(config.EnvMnemonic) != "":
		return string(keys.SourceMnemonic)
	default:
		return string(keys.SourceFile)
	}
}

// load returns the signing key. The caller must Destroy it.
func (k *keyFlags) load() (*keys.Key, error) {
	spec, err := k.spec()
	if err != nil {
		return nil, err
	}
	key, err := keys.Load(spec, passphraseFromEnvOrPrompt(os.Getenv(config.EnvPassphrase)))
	if err != nil {
		logger.Error("loading %s key: %v", spec.Source, err)
		return nil, err
	}
	logger.Debug("loaded %s key for %s", key.Origin(), key.Address())
	return key, nil
}
