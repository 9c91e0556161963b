/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/tabwriter"

	"shaperounder/internal/backend"
	"shaperounder/internal/config"
	"shaperounder/internal/export"
	"shaperounder/internal/rounding"
	"shaperounder/internal/storage"
	"shaperounder/internal/telemetry"
	"shaperounder/internal/vector"
)

// roundFlags are shared by round, points and remote round.
type roundFlags struct {
	fs *flag.FlagSet

	radius, flatness   float64
	minAngle, maxAngle float64
	resolution         float64
	mode, pointType    string
	yAxis, custom      string
}

func bindRoundFlags(fs *flag.FlagSet, cfg config.AppConfig) *roundFlags {
	rf := &roundFlags{fs: fs}
	fs.Float64Var(&rf.radius, "radius", cfg.Rounding.Radius, "fillet radius")
	fs.Float64Var(&rf.flatness, "flatness", cfg.Rounding.Flatness, "0 = circular arc, 1 = straight chamfer")
	fs.Float64Var(&rf.minAngle, "min-angle", cfg.Rounding.MinAngle, "smallest corner angle rounded in corners mode (degrees)")
	fs.Float64Var(&rf.maxAngle, "max-angle", cfg.Rounding.MaxAngle, "largest corner angle rounded in corners mode (degrees)")
	fs.StringVar(&rf.mode, "mode", cfg.Rounding.EditMode, "all | corners | custom-points | custom-corners")
	fs.StringVar(&rf.pointType, "type", cfg.Rounding.PointType, "all | inner | outer")
	fs.StringVar(&rf.yAxis, "y-axis", cfg.Rounding.YAxis, "down | up")
	fs.Float64Var(&rf.resolution, "resolution", cfg.Document.Resolution, "document resolution in dpi")
	fs.StringVar(&rf.custom, "custom", "", "per-point radii for the custom modes, e.g. 3=12,5")
	return rf
}

// request carries only the flags given on the command line, so the receiver applies its
// own defaults to everything else.
func (rf *roundFlags) request() (backend.RoundRequest, error) {
	set := map[string]bool{}
	rf.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	num := func(name string, v float64) *float64 {
		if !set[name] {
			return nil
		}
		return &v
	}
	rr := backend.RoundRequest{
		Radius:     num("radius", rf.radius),
		Flatness:   num("flatness", rf.flatness),
		AngleMin:   num("min-angle", rf.minAngle),
		AngleMax:   num("max-angle", rf.maxAngle),
		Resolution: num("resolution", rf.resolution),
	}
	if set["mode"] {
		rr.EditMode = rf.mode
	}
	if set["type"] {
		rr.PointType = rf.pointType
	}
	if set["y-axis"] {
		rr.YAxis = rf.yAxis
	}
	if rf.custom != "" {
		radii, err := rounding.ParseCustomRadii(rf.custom, rf.radius)
		if err != nil {
			return rr, err
		}
		rr.Custom = make(map[int]float64, len(radii))
		for gi, r := range radii {
			rr.Custom[int(gi)] = r
		}
	}
	return rr, nil
}

// params resolves the flags over the configuration.
func (a *app) params(rf *roundFlags) (rounding.Params, float64, error) {
	rr, err := rf.request()
	if err != nil {
		return rounding.Params{}, 0, err
	}
	base, err := a.cfg.Rounding.Params()
	if err != nil {
		return rounding.Params{}, 0, fmt.Errorf("config: %w", err)
	}
	scale, err := a.cfg.Document.Scale()
	if err != nil {
		return rounding.Params{}, 0, fmt.Errorf("config: %w", err)
	}
	return rr.Resolve(base, scale)
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := a.flags("list")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withSession(ctx, func(s *session) error {
		entries, err := storage.ListRoundable(ctx, s.store)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(a.out, "No roundable paths.")
			return nil
		}
		active, _, _ := s.store.ActiveSelectionName(ctx)
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\tNAME\tANCHORS")
		for _, e := range entries {
			mark := ""
			if e.Name == active {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", mark, e.Name, e.Anchors)
		}
		return tw.Flush()
	})
}

func (a *app) cmdPoints(ctx context.Context, args []string) error {
	fs := a.flags("points")
	rf := bindRoundFlags(fs, a.cfg)
	if err := parse(fs, args); err != nil {
		return err
	}
	params, _, err := a.params(rf)
	if err != nil {
		return err
	}
	return a.withSession(ctx, func(s *session) error {
		name, err := target(ctx, s.store, fs.Args())
		if err != nil {
			return err
		}
		p, err := s.store.Read(ctx, name)
		if err != nil {
			return err
		}
		c := rounding.Classify(p, params.YAxis)
		if params.Mode == rounding.CustomCorners && len(params.CustomRadii) == 0 {
			params.CustomRadii = rounding.CornerCandidates(c, params)
		}
		decisions := rounding.Select(c, params)

		fmt.Fprintf(a.out, "%s (%s, y axis %s)\n", p.Name, params.Mode, params.YAxis)
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "IDX\tSUB\tPT\tKIND\tANGLE\tTURN\tCORNER\tRADIUS")
		for _, info := range c {
			ap := p.SubPaths[info.Sub].Points[info.Pt]
			angle, corner, radius := "-", "-", "-"
			if info.Eligible {
				angle = fmt.Sprintf("%.1f", info.Angle)
				corner = yesNo(info.Corner)
			}
			if d := decisions[info.Index]; d.Round {
				radius = fmt.Sprintf("%g", d.Radius)
			}
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				info.Index, info.Sub, info.Pt, ap.Kind, angle, info.Orientation, corner, radius)
		}
		return tw.Flush()
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (a *app) cmdRound(ctx context.Context, args []string) error {
	fs := a.flags("round")
	rf := bindRoundFlags(fs, a.cfg)
	dry := fs.Bool("dry-run", false, "compute the rounding without changing the store")
	if err := parse(fs, args); err != nil {
		return err
	}
	params, scale, err := a.params(rf)
	if err != nil {
		return err
	}
	return a.withSession(ctx, func(s *session) error {
		name, err := target(ctx, s.store, fs.Args())
		if err != nil {
			return err
		}
		// custom-corners without explicit radii rounds every corner candidate
		seed := params.Mode == rounding.CustomCorners && len(params.CustomRadii) == 0
		if seed || *dry {
			p, err := s.store.Read(ctx, name)
			if err != nil {
				return err
			}
			if seed {
				params.CustomRadii = rounding.CornerCandidates(rounding.Classify(p, params.YAxis), params)
			}
			if *dry {
				res, err := rounding.Round(p, params, scale)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Would round %q\n", name)
				a.printStats(res.Stats)
				return nil
			}
		}

		out, err := s.manager().Apply(ctx, name, params, scale)
		if err != nil {
			if out.Restored != "" {
				fmt.Fprintf(a.errOut, "Rounding failed; %q was restored as %q.\n", name, out.Restored)
			}
			return err
		}
		fmt.Fprintf(a.out, "Rounded %q -> %q (original kept as %q)\n", out.Source, out.Rounded, out.Original)
		a.printStats(out.Stats)
		telemetry.RoundApplied(telemetry.RoundApply{
			Mode:       params.Mode.String(),
			Store:      s.kind,
			Rounded:    out.Stats.Rounded,
			Degenerate: out.Stats.Degenerate,
			Passed:     out.Stats.Passed,
		})
		return nil
	})
}

func (a *app) printStats(st rounding.Stats) {
	fmt.Fprintf(a.out, "Points: %d rounded, %d degenerate, %d untouched\n", st.Rounded, st.Degenerate, st.Passed)
}

func (a *app) cmdRestore(ctx context.Context, args []string) error {
	fs := a.flags("restore")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withSession(ctx, func(s *session) error {
		name := fs.Arg(0)
		if name == "" {
			active, ok, err := s.store.ActiveSelectionName(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return usagef("restore needs a path name when nothing is selected")
			}
			name = active
		}
		restored, err := s.manager().RestoreFromJournal(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Restored %q as %q\n", name, restored)
		return nil
	})
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := a.flags("export")
	dpi := fs.Int("dpi", 0, "raster resolution (preset default, otherwise 150)")
	anchors := fs.Bool("anchors", false, "mark anchor points")
	label := fs.Bool("label", false, "print the path name (single file only)")
	labelFont := fs.String("font", a.cfg.Export.LabelFont, "TrueType/OpenType file for PNG labels")
	preset := fs.String("preset", "", "batch export: preview | print")
	outDir := fs.String("out", "", "batch output directory (default ./<preset>)")
	formats := fs.String("formats", "", "batch formats, comma separated (default depends on preset)")
	yAxis := fs.String("y-axis", a.cfg.Rounding.YAxis, "down | up")
	if err := parse(fs, args); err != nil {
		return err
	}
	axis, err := vector.ParseYAxis(*yAxis)
	if err != nil {
		return usageError{msg: err.Error()}
	}

	if *preset == "" {
		if fs.NArg() != 2 {
			return usagef("export needs <name> and <file>, or -preset")
		}
		return a.withSession(ctx, func(s *session) error {
			p, err := s.store.Read(ctx, fs.Arg(0))
			if err != nil {
				return err
			}
			opt := export.Options{DPI: *dpi, YAxis: axis, ShowAnchors: *anchors, Label: *label, LabelFont: *labelFont}
			if err := export.WriteFile(fs.Arg(1), p, opt); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", fs.Arg(1))
			return nil
		})
	}

	bo := export.BatchOptions{Preset: export.PresetName(strings.ToLower(*preset)), DPIOverride: *dpi, YAxis: axis, OutDir: *outDir, LabelFont: *labelFont}
	if bo.Preset != export.PresetPreview && bo.Preset != export.PresetPrint {
		return usagef("unknown preset %q", *preset)
	}
	if *formats != "" {
		bo.Formats = strings.Split(*formats, ",")
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "anchors" {
			bo.ShowAnchors = anchors
		}
	})
	return a.withSession(ctx, func(s *session) error {
		names := fs.Args()
		if len(names) == 0 {
			entries, err := storage.ListRoundable(ctx, s.store)
			if err != nil {
				return err
			}
			for _, e := range entries {
				names = append(names, e.Name)
			}
		}
		paths := make([]vector.Path, 0, len(names))
		for _, n := range names {
			p, err := s.store.Read(ctx, n)
			if err != nil {
				return err
			}
			paths = append(paths, p)
		}
		files, err := export.BatchExport(paths, bo)
		for _, f := range files {
			fmt.Fprintf(a.out, "Wrote %s\n", f)
		}
		return err
	})
}

func (a *app) cmdServe(ctx context.Context, args []string) error {
	fs := a.flags("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	noIssue := fs.Bool("no-token-issue", a.cfg.Server.NoTokenIssue, "do not serve POST /api/auth/token")
	if err := parse(fs, args); err != nil {
		return err
	}
	params, err := a.cfg.Rounding.Params()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	scale, err := a.cfg.Document.Scale()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	secret, err := a.secrets.Get(config.SecretAuth)
	if err != nil {
		a.log.Warn("read auth secret from keychain failed", slog.Any("err", err))
	}
	return a.withSession(ctx, func(s *session) error {
		srv := backend.NewServer(backend.Config{
			Addr:         *addr,
			AuthSecret:   secret,
			Params:       params,
			Scale:        scale,
			StoreKind:    s.kind,
			NoTokenIssue: *noIssue,
		}, s.store, s.journal)
		fmt.Fprintf(a.out, "Serving the %s store on %s\n", s.kind, *addr)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}
