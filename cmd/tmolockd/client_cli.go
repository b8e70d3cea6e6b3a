package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/api"
	lockclient "github.com/EdwinVallejo/SalesforceTMO/client"
)

const (
	clientServerKey  = "client.server"
	clientTimeoutKey = "client.timeout"
)

func newClientCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interact with a running tmolockd server",
	}

	flags := cmd.PersistentFlags()
	flags.String("server", "http://127.0.0.1:9346", "tmolockd server base URL")
	flags.Duration("timeout", lockclient.DefaultRequestTimeout, "per-request HTTP timeout")

	mustBindFlag(clientServerKey, "TMOLOCKD_CLIENT_SERVER", flags.Lookup("server"))
	mustBindFlag(clientTimeoutKey, "TMOLOCKD_CLIENT_TIMEOUT", flags.Lookup("timeout"))

	cmd.AddCommand(
		newClientCheckCommand(baseLogger),
		newClientLockCommand(baseLogger),
		newClientUnlockCommand(baseLogger),
	)

	return cmd
}

func mustBindFlag(key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

func newAPIClient(baseLogger pslog.Logger) (*lockclient.Client, error) {
	return lockclient.New(viper.GetString(clientServerKey),
		lockclient.WithLogger(baseLogger.With("sys", "client")),
		lockclient.WithRequestTimeout(viper.GetDuration(clientTimeoutKey)),
	)
}

func newClientCheckCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <record-id>",
		Short: "Report whether a record is locked and by whom",
		Example: `  # Check the lock status of customer record 001xyz
  tmolockd client check 001xyz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newAPIClient(baseLogger)
			if err != nil {
				return err
			}
			record, err := cli.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLockStatus(cmd, args[0], record)
			return nil
		},
	}
	return cmd
}

func newClientLockCommand(baseLogger pslog.Logger) *cobra.Command {
	var name string
	var group string
	var durationMinutes int64
	cmd := &cobra.Command{
		Use:   "lock <record-id>",
		Short: "Acquire (or overwrite) the lock on a record",
		Example: `  # Lock record 001xyz for Ana from QA for two days
  tmolockd client lock 001xyz --name Ana --group QA --duration 2880`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, cacheErr := lockclient.DefaultIdentityCache()
			identity := loadIdentity(cache, cacheErr, baseLogger)
			if name == "" {
				name = identity.Name
			}
			if group == "" {
				group = identity.Group
			}
			var duration *int64
			switch {
			case cmd.Flags().Changed("duration"):
				duration = &durationMinutes
			case identity.DurationMinutes != 0:
				duration = &identity.DurationMinutes
			}

			cli, err := newAPIClient(baseLogger)
			if err != nil {
				return err
			}
			record, err := cli.Acquire(cmd.Context(), api.AcquireRequest{
				RecordID:        args[0],
				HolderName:      name,
				HolderGroup:     group,
				DurationMinutes: duration,
			})
			if err != nil {
				return err
			}

			if cacheErr == nil {
				saved := lockclient.ClientIdentity{Name: name, Group: group}
				if duration != nil {
					saved.DurationMinutes = *duration
				}
				if err := cache.Save(saved); err != nil {
					baseLogger.Debug("identity cache save failed", "error", err)
				}
			}

			printLockStatus(cmd, args[0], &record.LockRecord)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "holder name (defaults to the cached identity)")
	flags.StringVar(&group, "group", "", "holder group (defaults to the cached identity)")
	flags.Int64Var(&durationMinutes, "duration", 0, "lock duration in minutes (omit for the server default)")
	return cmd
}

func newClientUnlockCommand(baseLogger pslog.Logger) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "unlock <record-id>",
		Short: "Release the lock on a record",
		Example: `  # Release the lock on 001xyz, confirming interactively if held by someone else
  tmolockd client unlock 001xyz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newAPIClient(baseLogger)
			if err != nil {
				return err
			}
			cache, cacheErr := lockclient.DefaultIdentityCache()
			identity := loadIdentity(cache, cacheErr, baseLogger)

			record, err := cli.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if record == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is free\n", args[0])
				return nil
			}
			own := strings.EqualFold(strings.TrimSpace(record.HolderName), strings.TrimSpace(identity.Name))
			if !own && !yes {
				prompt := fmt.Sprintf("%s is locked by %s (%s); release anyway? [y/N] ", args[0], record.HolderName, record.HolderGroup)
				if !confirm(cmd, prompt) {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}
			if _, err := cli.Release(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt when the lock is held by someone else")
	return cmd
}

func loadIdentity(cache *lockclient.FileIdentityCache, cacheErr error, logger pslog.Logger) lockclient.ClientIdentity {
	if cacheErr != nil {
		logger.Debug("identity cache unavailable", "error", cacheErr)
		return lockclient.ClientIdentity{}
	}
	identity, err := cache.Load()
	if err != nil {
		logger.Debug("identity cache load failed", "error", err)
		return lockclient.ClientIdentity{}
	}
	return identity
}

func printLockStatus(cmd *cobra.Command, recordID string, record *api.LockRecord) {
	out := cmd.OutOrStdout()
	if record == nil {
		fmt.Fprintf(out, "%s is free\n", recordID)
		return
	}
	expires := time.Unix(record.ExpiresAt, 0).UTC()
	fmt.Fprintf(out, "%s is locked by %s (%s), expires %s (%s)\n",
		record.RecordID, record.HolderName, record.HolderGroup,
		expires.Format(time.RFC3339), humanize.Time(expires))
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
