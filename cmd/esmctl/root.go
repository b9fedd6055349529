package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/esmwire/internal/codec"
	"github.com/danmuck/esmwire/internal/config"
	"github.com/danmuck/esmwire/internal/keyring"
	"github.com/danmuck/esmwire/internal/logging"
	"github.com/danmuck/esmwire/internal/protocol/schema"
)

type app struct {
	in  io.Reader
	out io.Writer

	envFile    string
	configPath string
	format     string
	keyring    string

	cfg toolConfig
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}
	root := &cobra.Command{
		Use:   "esmctl",
		Short: "esmctl - inspect and produce extension wire payloads",
		Long: `esmctl decodes and encodes the host text payloads exchanged with the game
server extension, seals and opens encrypted packets for configured peers, and
serves the same operations over an HTTP inspection API.

Input is read from the first argument, or from stdin when it is omitted or "-".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadEnv(); err != nil {
				return err
			}
			logging.ConfigureRuntime()
			return a.loadConfig()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file with ESMWIRE_* settings (default .env when present)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "esmctl config file (toml)")
	root.PersistentFlags().StringVar(&a.format, "format", "", "payload format: pairs|parallel|object")
	root.PersistentFlags().StringVar(&a.keyring, "keyring", "", "peer keyring file (toml)")

	root.AddCommand(
		a.decodeCmd(),
		a.encodeCmd(),
		a.parseCmd(),
		a.sealCmd(),
		a.openCmd(),
		a.serveCmd(),
		a.tokenCmd(),
		a.configCmd(),
	)
	return root
}

// loadEnv reads a dotenv file into the process environment. Variables that are
// already set win.
func (a *app) loadEnv() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (a *app) loadConfig() error {
	a.cfg = defaultToolConfig()
	if a.configPath != "" {
		cfg, err := loadToolConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.format != "" {
		f, err := schema.ParseFormat(a.format)
		if err != nil {
			return err
		}
		a.cfg.Format = f
	}
	if a.keyring != "" {
		a.cfg.Keyring = a.keyring
	}
	return nil
}

func (a *app) loadKeyring() (*keyring.Keyring, error) {
	kc, err := config.LoadKeyringConfig(a.cfg.Keyring)
	if err != nil {
		return nil, err
	}
	ring, err := keyring.FromConfig(kc)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("keyring", a.cfg.Keyring).Strs("peers", ring.Peers()).Msg("keyring loaded")
	return ring, nil
}

// service builds a codec. Keys are only loaded when withKeys is set so that
// payload commands work without a keyring file.
func (a *app) service(withKeys bool) (*codec.Service, error) {
	cfg := codec.DefaultConfig()
	cfg.Format = a.cfg.Format
	if !withKeys {
		return codec.NewService(cfg, nil, log.Logger), nil
	}
	ring, err := a.loadKeyring()
	if err != nil {
		return nil, err
	}
	return codec.NewService(cfg, ring, log.Logger), nil
}

// input returns args[0], or all of stdin when args is empty or "-".
func (a *app) input(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(a.in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

func decodePacket(s string) ([]byte, error) {
	packet, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("packet is not base64: %w", err)
	}
	return packet, nil
}
