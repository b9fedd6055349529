package main

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/esmwire/internal/auth"
	"github.com/danmuck/esmwire/internal/config"
	"github.com/danmuck/esmwire/internal/observability"
	"github.com/danmuck/esmwire/internal/protocol"
	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
	"github.com/danmuck/esmwire/internal/protocol/value"
	"github.com/danmuck/esmwire/internal/server"
)

func (a *app) decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode host text into a JSON payload envelope",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "data [raw]",
		Short: "Decode a data payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.input(args)
			if err != nil {
				return err
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			d, err := svc.DecodeData(raw)
			if err != nil {
				return fmt.Errorf("decode data: %w", err)
			}
			out, err := data.MarshalJSON(d)
			if err != nil {
				return err
			}
			a.println(string(out))
			return nil
		},
	}, &cobra.Command{
		Use:   "metadata [raw]",
		Short: "Decode a metadata payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.input(args)
			if err != nil {
				return err
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			md, err := svc.DecodeMetadata(raw)
			if err != nil {
				return fmt.Errorf("decode metadata: %w", err)
			}
			out, err := metadata.MarshalJSON(md)
			if err != nil {
				return err
			}
			a.println(string(out))
			return nil
		},
	})
	return cmd
}

func (a *app) encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a JSON payload envelope as host text",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "data [json]",
		Short: "Encode a data payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.input(args)
			if err != nil {
				return err
			}
			d, err := data.UnmarshalJSON([]byte(in))
			if err != nil {
				return fmt.Errorf("read data envelope: %w", err)
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			raw, err := svc.EncodeData(d)
			if err != nil {
				return fmt.Errorf("encode data: %w", err)
			}
			a.println(raw)
			return nil
		},
	}, &cobra.Command{
		Use:   "metadata [json]",
		Short: "Encode a metadata payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.input(args)
			if err != nil {
				return err
			}
			md, err := metadata.UnmarshalJSON([]byte(in))
			if err != nil {
				return fmt.Errorf("read metadata envelope: %w", err)
			}
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			raw, err := svc.EncodeMetadata(md)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			a.println(raw)
			return nil
		},
	})
	return cmd
}

func (a *app) parseCmd() *cobra.Command {
	var keepPairs bool
	cmd := &cobra.Command{
		Use:   "parse [raw]",
		Short: "Parse host text into a normalized JSON tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.input(args)
			if err != nil {
				return err
			}
			tree, err := value.ParseHost(raw)
			if err != nil {
				return err
			}
			if !keepPairs {
				tree = value.Normalize(tree)
			}
			out, err := tree.MarshalJSON()
			if err != nil {
				return err
			}
			a.println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepPairs, "raw", false, "skip pair-list normalization")
	return cmd
}

func (a *app) sealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal [message-json]",
		Short: "Encrypt a JSON message for its peer and print the packet as base64",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.input(args)
			if err != nil {
				return err
			}
			var m protocol.Message
			if err := m.UnmarshalJSON([]byte(in)); err != nil {
				return err
			}
			svc, err := a.service(true)
			if err != nil {
				return err
			}
			packet, err := svc.Seal(&m)
			if err != nil {
				return fmt.Errorf("seal (%s): %w", protocol.Classify(err), err)
			}
			a.println(base64.StdEncoding.EncodeToString(packet))
			return nil
		},
	}
}

func (a *app) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [base64-packet]",
		Short: "Decrypt a base64 packet and print the message as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.input(args)
			if err != nil {
				return err
			}
			packet, err := decodePacket(in)
			if err != nil {
				return err
			}
			svc, err := a.service(true)
			if err != nil {
				return err
			}
			m, err := svc.Open(packet)
			if err != nil {
				return fmt.Errorf("open (%s): %w", protocol.Classify(err), err)
			}
			out, err := m.MarshalJSON()
			if err != nil {
				return err
			}
			a.println(string(out))
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP inspection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("esmctl")
			if addr != "" {
				a.cfg.Addr = addr
			}
			svc, err := a.service(true)
			if err != nil {
				return err
			}
			srv := server.New(server.Config{
				ID:          "esmctl",
				Addr:        a.cfg.Addr,
				CORSOrigins: a.cfg.CORSOrigins,
				Validator:   a.cfg.validator(),
				RateLimit:   a.cfg.RateLimit,
				RateBurst:   a.cfg.RateBurst,
			}, svc)
			return srv.Serve()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the inspection API from jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.SignHS256([]byte(a.cfg.JWTSecret), a.cfg.JWTIssuer, subject, ttl)
			if err != nil {
				return err
			}
			a.println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "esmctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate config files",
	}

	var (
		kind   string
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := output
			if target == "" {
				target = defaultConfigPath(kind)
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			a.println(fmt.Sprintf("wrote %s config template to %s", kind, target))
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "esmctl", "config kind: esmctl|keyring")
	initCmd.Flags().StringVar(&output, "output", "", "output path (defaults to <kind>.toml)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var validateKind string
	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath(validateKind)
			if len(args) > 0 {
				path = args[0]
			}
			switch strings.ToLower(strings.TrimSpace(validateKind)) {
			case "esmctl":
				if _, err := loadToolConfig(path); err != nil {
					return err
				}
			case "keyring":
				if _, err := config.LoadKeyringConfig(path); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown config kind: %s", validateKind)
			}
			a.println(fmt.Sprintf("validated %s config at %s", validateKind, path))
			return nil
		},
	}
	validateCmd.Flags().StringVar(&validateKind, "kind", "esmctl", "config kind: esmctl|keyring")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func defaultConfigPath(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "keyring":
		return "keyring.toml"
	default:
		return "esmctl.toml"
	}
}
