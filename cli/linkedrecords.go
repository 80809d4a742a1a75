/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
LinkedRecords is a fact graph server with owner based authorization.

The command line interface can start the server or run a single operation
on the configured fact storage:

	linkedrecords server                      Start the HTTP server
	linkedrecords facts --predicate isA       List stored facts
	linkedrecords store --user us-1 <facts>   Store facts on behalf of a user
	linkedrecords query [--user us-1] <query> Resolve a compound query
	linkedrecords reset                       Remove all facts and attributes
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"devt.de/krotik/linkedrecords/api"
	"devt.de/krotik/linkedrecords/config"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/data"
	"devt.de/krotik/linkedrecords/query"
	"devt.de/krotik/linkedrecords/server"
	"github.com/spf13/cobra"
)

/*
RootOptions holds the global command line options.
*/
type RootOptions struct {
	ConfigFile string
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

/*
NewRootCommand creates the linkedrecords root command with all subcommands.
*/
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linkedrecords",
		Short: "LinkedRecords fact graph server",
		Long: `LinkedRecords stores facts (subject, predicate, object) in graphs which
belong to users. Access to facts and attributes is derived from the facts
themselves.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfigFile(opts.ConfigFile); err != nil {
				return fmt.Errorf("Could not load config file %v: %v", opts.ConfigFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c",
		config.DefaultConfigFile, "Configuration file (created with defaults if missing)")

	cmd.AddCommand(newServerCommand())
	cmd.AddCommand(newFactsCommand())
	cmd.AddCommand(newStoreCommand())
	cmd.AddCommand(newQueryCommand())
	cmd.AddCommand(newResetCommand())

	return cmd
}

func newServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the LinkedRecords HTTP server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			server.StartServer()
		},
	}
}

/*
singleOp runs a function on a fully initialised server setup without
starting the HTTP server.
*/
func singleOp(f func(ctx context.Context, gm *graph.Manager) error) error {
	var err error

	server.StartServerWithSingleOp(func(gm *graph.Manager) bool {
		err = f(context.Background(), gm)
		return true
	})

	return err
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return err
}

func newFactsCommand() *cobra.Command {
	var subject, predicate, object, user string

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List stored facts",
		Long: `List stored facts. Subject and object filters are JSON lists of
ids or [predicate, object] patterns, the predicate filter is a JSON list
of predicates. A single JSON string is accepted for each filter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return singleOp(func(ctx context.Context, gm *graph.Manager) error {
				var err error

				fq := graph.FactQuery{User: user}

				if subject != "" {
					if fq.Subject, err = graph.ParseNodeMatchers(subject); err != nil {
						return err
					}
				}
				if predicate != "" {
					if fq.Predicate, err = graph.ParsePredicates(predicate); err != nil {
						return err
					}
				}
				if object != "" {
					if fq.Object, err = graph.ParseNodeMatchers(object); err != nil {
						return err
					}
				}

				facts, err := gm.FindAll(ctx, fq)
				if err != nil {
					return err
				}

				res := make([][]string, 0, len(facts))
				for _, f := range facts {
					res = append(res, f.Triple())
				}

				return writeJSON(cmd, res)
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject filter")
	cmd.Flags().StringVarP(&predicate, "predicate", "p", "", "Predicate filter")
	cmd.Flags().StringVarP(&object, "object", "o", "", "Object filter")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Only list facts visible to this user")

	return cmd
}

func newStoreCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "store <facts>",
		Short: "Store facts on behalf of a user",
		Long: `Store a JSON list of [subject, predicate, object] facts on behalf of
a user. The facts are authorized like facts which are sent to the REST API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var triples [][]string

			if !data.IsUserID(user) {
				return fmt.Errorf("A valid user id is required: %q", user)
			}

			if err := json.Unmarshal([]byte(args[0]), &triples); err != nil {
				return fmt.Errorf("Could not decode facts: %v", err)
			}

			facts := make([]data.Fact, 0, len(triples))
			for _, t := range triples {
				if len(t) != 3 {
					return fmt.Errorf("Fact must be a [subject, predicate, object] list: %v", t)
				}

				f := data.Fact{Subject: t[0], Predicate: t[1], Object: t[2]}
				if err := f.Validate(); err != nil {
					return err
				}
				facts = append(facts, f)
			}

			return singleOp(func(ctx context.Context, gm *graph.Manager) error {
				if err := api.AE.RequireCreateFacts(ctx, facts, user); err != nil {
					return err
				}

				stored, err := gm.SaveAll(ctx, facts, user)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored %v new facts\n", len(stored))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Acting user")

	return cmd
}

func newQueryCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Resolve a compound query",
		Long: `Resolve a compound query. Without a user the query is resolved to ids
without authorization checks. With a user the result contains the readable
attributes of the result ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cq, err := query.ParseCompoundQuery(args[0])
			if err != nil {
				return err
			}

			return singleOp(func(ctx context.Context, gm *graph.Manager) error {
				var res map[string]interface{}
				var err error

				if user == "" {
					res, err = api.Resolver.ResolveCompoundQueryToIds(ctx, cq)
				} else {
					res, err = api.Resolver.ResolveToAttributes(ctx, cq, user)
				}

				if err != nil {
					return err
				}

				return writeJSON(cmd, res)
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Resolve attributes for this user")

	return cmd
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove all facts and attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return singleOp(func(ctx context.Context, gm *graph.Manager) error {
				if err := gm.Reset(ctx); err != nil {
					return err
				}
				if err := api.Attributes.Reset(ctx); err != nil {
					return err
				}

				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Removed all facts and attributes")
				return err
			})
		},
	}
}
