package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/DoctaneDMS/dms-service-sql/internal/app"
	"github.com/DoctaneDMS/dms-service-sql/internal/config"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
)

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// withApp opens a DMSApp for the command, runs fn and closes the app with
// fn's outcome. Mutating commands hold the repository lock meanwhile.
func withApp(cmd *cobra.Command, args []string, mutating bool, fn func(context.Context, *app.DMSApp) error) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	ctx := cmd.Context()
	a, err := app.NewDMSApp(ctx, cfg, cmd.Name(), args, app.Options{Mutating: mutating, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	err = fn(ctx, a)
	if closeErr := a.Close(err); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// unlock prompts for the passphrase of an encrypted repository.
// DMS_PASSPHRASE skips the prompt.
func unlock(a *app.DMSApp) error {
	if !a.Encrypted() {
		return nil
	}
	passphrase := os.Getenv("DMS_PASSPHRASE")
	if passphrase == "" {
		var err error
		if passphrase, err = readPassphrase("Passphrase: "); err != nil {
			return err
		}
	}
	return a.Unlock(passphrase)
}

func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("passphrase required: set DMS_PASSPHRASE or run from a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "dms",
	Short:        "Versioned document repository",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg := config.NewConfig(defaults["base_dir"])
		if encryption, _ := cmd.Flags().GetString("encryption"); encryption != "" {
			cfg.Encryption.Type = encryption
		}
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Blob Store: %s\n", cfg.BlobStore.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the repository key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}
		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s\n", cfg.Encryption.PublicKeyPath)
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parents, _ := cmd.Flags().GetBool("parents")
		state, _ := cmd.Flags().GetString("state")
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			folder, err := a.Mkdir(ctx, args[0], parents, state)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n", folder.Path, folder.ID)
			return nil
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put PATH FILE",
	Short: "Store a file as a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts app.PutOptions
		opts.MediaType, _ = cmd.Flags().GetString("media-type")
		opts.Parents, _ = cmd.Flags().GetBool("parents")
		opts.Update, _ = cmd.Flags().GetBool("update")
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			link, err := a.Put(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", link.Path, link.Reference)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Write document content to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withApp(cmd, args, false, func(ctx context.Context, a *app.DMSApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			_, err := a.Get(ctx, args[0], w)
			return err
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List workspaces and documents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts app.ListOptions
		opts.History, _ = cmd.Flags().GetBool("history")
		opts.Deleted, _ = cmd.Flags().GetBool("deleted")
		opts.Where, _ = cmd.Flags().GetString("where")
		format, _ := cmd.Flags().GetString("output")
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return withApp(cmd, args, false, func(ctx context.Context, a *app.DMSApp) error {
			objs, err := a.List(ctx, target, opts)
			if err != nil {
				return err
			}
			return printObjects(os.Stdout, format, objs)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info PATH",
	Short: "Show a workspace or document link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		return withApp(cmd, args, false, func(ctx context.Context, a *app.DMSApp) error {
			obj, err := a.Info(ctx, args[0])
			if err != nil {
				return err
			}
			if format == "text" {
				format = "yaml"
			}
			return printObjects(os.Stdout, format, []dms.Object{obj})
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp SRC DST",
	Short: "Copy a workspace or document link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parents, _ := cmd.Flags().GetBool("parents")
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			obj, err := a.Copy(ctx, args[0], args[1], parents)
			if err != nil {
				return err
			}
			fmt.Printf("Copied to %s\n", obj.ObjectPath())
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a workspace or document link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			objs, err := a.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d object(s)\n", len(objs))
			return nil
		})
	},
}

var undeleteCmd = &cobra.Command{
	Use:   "undelete PATH",
	Short: "Restore a deleted workspace or document link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			objs, err := a.Undelete(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d object(s)\n", len(objs))
			return nil
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish PATH LABEL",
	Short: "Publish a labelled snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			obj, err := a.Publish(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Published %s\n", obj.ObjectPath())
			return nil
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state PATH STATE",
	Short: "Change the state of a workspace (Open, Closed, Finalized)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, true, func(ctx context.Context, a *app.DMSApp) error {
			folder, err := a.SetState(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s is %s\n", folder.Path, folder.State)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history DOCID",
	Short: "View the versions of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, false, func(ctx context.Context, a *app.DMSApp) error {
			docs, err := a.History(ctx, args[0])
			if err != nil {
				return err
			}
			for _, d := range docs {
				current := ""
				if d.Latest {
					current = "  [latest]"
				}
				fmt.Printf("%s  %s  %-24s  %d%s\n",
					d.Version,
					d.Created.Format(time.DateTime),
					d.MediaType,
					d.Length,
					current,
				)
			}
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [PATH]",
	Short: "Verify stored content against recorded digests",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return withApp(cmd, args, fix, func(ctx context.Context, a *app.DMSApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			status, err := a.Check(ctx, target, fix)
			fmt.Println(status)
			if err != nil {
				return err
			}
			if status.Failed > status.Fixed || status.Errors > 0 {
				return errors.New("integrity check failed")
			}
			return nil
		})
	},
}

// objectView is the rendering of a dms.Object for json and yaml output.
func objectView(obj dms.Object) map[string]any {
	v := map[string]any{
		"id":   obj.ObjectID().String(),
		"path": obj.ObjectPath().String(),
		"type": string(obj.ObjectType()),
	}
	switch o := obj.(type) {
	case *dms.Folder:
		v["state"] = string(o.State)
		v["deleted"] = o.Deleted
		if len(o.Metadata) > 0 {
			v["metadata"] = map[string]any(o.Metadata)
		}
	case *dms.DocumentLink:
		v["reference"] = o.Reference.String()
		v["media_type"] = o.MediaType
		v["length"] = o.Length
		v["digest"] = fmt.Sprintf("%x", o.Digest)
		v["deleted"] = o.Deleted
		if len(o.Metadata) > 0 {
			v["metadata"] = map[string]any(o.Metadata)
		}
	}
	return v
}

func printObjects(w io.Writer, format string, objs []dms.Object) error {
	views := make([]map[string]any, len(objs))
	for i, o := range objs {
		views[i] = objectView(o)
	}
	switch format {
	case "json":
		_, err := fmt.Fprintln(w, oj.JSON(views, &oj.Options{Indent: 2, Sort: true}))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case "text", "":
		for _, o := range objs {
			fmt.Fprintln(w, textLine(o))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func textLine(obj dms.Object) string {
	var b strings.Builder
	switch o := obj.(type) {
	case *dms.Folder:
		fmt.Fprintf(&b, "W  %-40s  %s", o.Path, o.State)
		if o.Deleted {
			b.WriteString("  [deleted]")
		}
	case *dms.DocumentLink:
		fmt.Fprintf(&b, "D  %-40s  %-24s  %8d  %s", o.Path, o.MediaType, o.Length, o.Reference)
		if o.Deleted {
			b.WriteString("  [deleted]")
		}
	}
	return b.String()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("encryption", "", "Encryption type (none, age)")

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)

	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().BoolP("parents", "p", false, "Create missing parent workspaces")
	mkdirCmd.Flags().String("state", "", "Initial state (Open, Closed, Finalized)")

	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringP("media-type", "t", "", "Media type (guessed from the file extension when empty)")
	putCmd.Flags().BoolP("parents", "p", false, "Create missing parent workspaces")
	putCmd.Flags().BoolP("update", "u", false, "Add a new version when the document exists")

	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Write content to this file instead of stdout")

	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("history", false, "Include every document version")
	lsCmd.Flags().Bool("deleted", false, "Include deleted objects")
	lsCmd.Flags().String("where", "", "JSONPath expression the metadata must match")
	lsCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")

	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringP("output", "o", "yaml", "Output format (json, yaml)")

	rootCmd.AddCommand(cpCmd)
	cpCmd.Flags().BoolP("parents", "p", false, "Create missing parent workspaces")

	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(undeleteCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("fix", false, "Replace mismatching digests with the computed ones")
}
