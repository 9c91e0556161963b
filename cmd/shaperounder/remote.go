/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"shaperounder/internal/backend"
	"shaperounder/internal/config"
)

func (a *app) cmdRemote(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("remote needs one of: list, round, restore")
	}
	sub, rest := args[0], args[1:]
	fs := a.flags("remote " + sub)
	baseURL := fs.String("url", a.cfg.Server.BaseURL, "server base URL")
	var rf *roundFlags
	if sub == "round" {
		rf = bindRoundFlags(fs, a.cfg)
	}
	if err := parse(fs, rest); err != nil {
		return err
	}

	switch sub {
	case "list":
		return a.withClient(ctx, *baseURL, func(c *backend.Client) error {
			list, err := c.ListPaths(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tANCHORS\tROUNDABLE")
			for _, p := range list.Paths {
				mark := ""
				if p.Name == list.Active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", mark, p.Name, p.Anchors, yesNo(p.Roundable))
			}
			return tw.Flush()
		})
	case "round", "restore":
		if fs.NArg() != 1 {
			return usagef("remote %s needs a path name", sub)
		}
		name := fs.Arg(0)
		return a.withClient(ctx, *baseURL, func(c *backend.Client) error {
			var (
				resp backend.RoundResponse
				err  error
			)
			if sub == "round" {
				req, rerr := rf.request()
				if rerr != nil {
					return rerr
				}
				resp, err = c.Round(ctx, name, req)
			} else {
				resp, err = c.Restore(ctx, name)
			}
			if err != nil {
				return err
			}
			a.printResponse(resp)
			return nil
		})
	default:
		return usagef("unknown remote command %q", sub)
	}
}

func (a *app) printResponse(r backend.RoundResponse) {
	switch {
	case r.Rounded != "":
		fmt.Fprintf(a.out, "Rounded %q -> %q (original kept as %q)\n", r.Source, r.Rounded, r.Original)
		fmt.Fprintf(a.out, "Points: %d rounded, %d degenerate, %d untouched\n", r.Stats.Rounded, r.Stats.Degenerate, r.Stats.Passed)
	case r.Restored != "":
		fmt.Fprintf(a.out, "Restored %q as %q\n", r.Source, r.Restored)
	}
}

// withClient runs call with a client authenticated from the keychain token. A missing or
// rejected token is replaced once.
func (a *app) withClient(ctx context.Context, baseURL string, call func(*backend.Client) error) error {
	tok, err := a.secrets.Get(config.SecretToken)
	if err != nil {
		a.log.Warn("read token from keychain failed", slog.Any("err", err))
	}
	c := backend.NewClient(baseURL, tok)
	c.SetTimeout(a.cfg.Server.EffectiveTimeout())
	if tok == "" {
		if err := a.refreshToken(ctx, c); err != nil {
			return err
		}
	}
	err = call(c)
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		if err := a.refreshToken(ctx, c); err != nil {
			return err
		}
		err = call(c)
	}
	return err
}

func (a *app) refreshToken(ctx context.Context, c *backend.Client) error {
	subject := os.Getenv("USER")
	if subject == "" {
		subject = "shaperounder"
	}
	tr, err := c.RequestToken(ctx, subject)
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	if err := a.secrets.Set(config.SecretToken, tr.Token); err != nil {
		a.log.Warn("store token in keychain failed", slog.Any("err", err))
	}
	return nil
}

func (a *app) cmdConfig(args []string) error {
	fs := a.flags("config")
	force := fs.Bool("force", false, "overwrite an existing file (init)")
	if err := parse(fs, args); err != nil {
		return err
	}
	switch fs.Arg(0) {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, p)
		return nil
	case "show", "":
		b, err := yaml.Marshal(a.cfg)
		if err != nil {
			return err
		}
		_, err = a.out.Write(b)
		return err
	case "init":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil && !*force {
			return fmt.Errorf("%s exists; use -force to overwrite", p)
		}
		if err := config.SaveTo(p, config.Defaults()); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Wrote %s\n", p)
		return nil
	default:
		return usagef("unknown config command %q", fs.Arg(0))
	}
}

var secretKeys = []string{config.SecretPGPassword, config.SecretAuth, config.SecretToken}

func (a *app) cmdSecret(args []string) error {
	fs := a.flags("secret")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("secret needs set|delete and one of: %s", strings.Join(secretKeys, ", "))
	}
	op, key := fs.Arg(0), fs.Arg(1)
	known := false
	for _, k := range secretKeys {
		known = known || k == key
	}
	if !known {
		return usagef("unknown secret %q; use one of: %s", key, strings.Join(secretKeys, ", "))
	}
	switch op {
	case "set":
		line, err := bufio.NewReader(a.in).ReadString('\n')
		value := strings.TrimRight(line, "\r\n")
		if value == "" {
			if err != nil {
				return fmt.Errorf("read secret from stdin: %w", err)
			}
			return usagef("empty secret")
		}
		if err := a.secrets.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Stored %s in the keychain\n", key)
		return nil
	case "delete":
		if err := a.secrets.Delete(key); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted %s\n", key)
		return nil
	default:
		return usagef("unknown secret command %q", op)
	}
}
