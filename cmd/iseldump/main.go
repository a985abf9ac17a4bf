package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/rivlang/riv/compiler/abi"
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/isel"
	"github.com/rivlang/riv/compiler/target/arm64"
)

type (
	options struct {
		AllPositions     bool `yaml:"all_positions"`
		JumpTables       bool `yaml:"jump_tables"`
		EnableScheduling bool `yaml:"scheduling"`
		RootsRelative    bool `yaml:"roots_relative"`
		DeterministicNaN bool `yaml:"deterministic_nan"`
		WorkBudget       int  `yaml:"work_budget"`
	}
)

func main() {
	selectCmd := &cli.Command{
		Name:        "select",
		Description: "run instruction selection on a sample graph and dump the result",
		Action:      selectAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "iseldump",
		Description: "iseldump pokes at the riv backend",
		Commands: []*cli.Command{
			selectCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func selectAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) == 0 {
		return errors.New("usage: select <sample> [options.yaml]")
	}

	var opts options

	if len(c.Args) > 1 {
		data, err := os.ReadFile(c.Args[1])
		if err != nil {
			return errors.Wrap(err, "read options")
		}

		err = yaml.Unmarshal(data, &opts)
		if err != nil {
			return errors.Wrap(err, "parse options")
		}
	}

	g, lk, err := sample(c.Args[0])
	if err != nil {
		return err
	}

	seq := asm.NewSequence()
	t := arm64.New()

	s := isel.New(g, lk, t, seq, isel.Options{
		AllPositions:     opts.AllPositions,
		JumpTables:       opts.JumpTables,
		EnableScheduling: opts.EnableScheduling,
		RootsRelative:    opts.RootsRelative,
		DeterministicNaN: opts.DeterministicNaN,
		WorkBudget:       opts.WorkBudget,
	})

	err = s.SelectInstructions(ctx)
	if err != nil {
		return errors.Wrap(err, "select %v", c.Args[0])
	}

	for _, b := range seq.Blocks {
		fmt.Printf("block %d:\n", b.Rpo)

		for _, phi := range seq.Phis[b.Rpo] {
			fmt.Printf("\tphi v%d = %v\n", phi.Out, phi.Ins)
		}

		for i := b.Start; i < b.End; i++ {
			ins := seq.Instrs[i]

			fmt.Printf("\t%3d  op=%v mode=%v outs=%v ins=%v\n", i, ins.Op.Arch(), ins.Op.FlagsMode(), ins.Outs, ins.Ins)
		}
	}

	return nil
}

// sample builds a small graph by name.
func sample(name string) (*ir.Graph, *abi.Linkage, error) {
	lk := &abi.Linkage{
		Incoming: abi.NewCallDescriptor(abi.CallCodeObject, []int{0, 1, 2, 3}, 2, []int{0}),
	}

	b := ir.NewBuilder()

	switch name {
	case "calc":
		b0 := b.NewBlock(false)

		x := b.Emit(b0, ir.Param{Index: 0})
		y := b.Emit(b0, ir.Param{Index: 1})
		c := b.Emit(b0, ir.Const{Kind: ir.ConstInt, Int: 100})
		sum := b.Emit(b0, ir.Add{L: x, R: y, Rep: ir.Word32})
		prod := b.Emit(b0, ir.Mul{L: sum, R: c, Rep: ir.Word32})
		b.Emit(b0, ir.Return{Values: []ir.Node{prod}})
	case "branchy":
		b0 := b.NewBlock(false)
		x := b.Emit(b0, ir.Param{Index: 0})
		y := b.Emit(b0, ir.Param{Index: 1})
		cmp := b.Emit(b0, ir.Cmp{L: x, R: y, Kind: ir.SignedLessThan, Rep: ir.Word32})
		b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2})

		b1 := b.NewBlock(false, b0)
		b.Emit(b1, ir.Goto{Target: 3})

		b2 := b.NewBlock(false, b0)
		b.Emit(b2, ir.Goto{Target: 3})

		b3 := b.NewBlock(false, b1, b2)
		one := b.Emit(b3, ir.Const{Kind: ir.ConstInt, Int: 1})
		two := b.Emit(b3, ir.Const{Kind: ir.ConstInt, Int: 2})
		phi := b.Emit(b3, ir.Phi{Rep: ir.Word32, Ins: []ir.Node{one, two}})
		b.Emit(b3, ir.Return{Values: []ir.Node{phi}})
	case "dense-switch":
		b0 := b.NewBlock(false)
		x := b.Emit(b0, ir.Param{Index: 0})

		cases := make([]ir.SwitchCase, 8)
		for i := range cases {
			cases[i] = ir.SwitchCase{Value: int32(i), Target: 1 + i}
		}

		b.Emit(b0, ir.Switch{Value: x, Cases: cases, Default: 9})

		for i := 0; i < 8; i++ {
			bi := b.NewBlock(false, b0)
			b.Emit(bi, ir.Goto{Target: 9})
		}

		end := b.NewBlock(false, 0, 1, 2, 3, 4, 5, 6, 7, 8)
		v := b.Emit(end, ir.Const{Kind: ir.ConstInt, Int: 0})
		b.Emit(end, ir.Return{Values: []ir.Node{v}})
	default:
		return nil, nil, errors.New("unknown sample: %v", name)
	}

	return b.Graph(), lk, nil
}
