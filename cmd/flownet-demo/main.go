// Command flownet-demo wires a three-process relay chain, runs it for a
// fixed number of timesteps and prints the accumulated state of the
// last process. Each process adds its input into an internal variable
// and forwards the result, so the value seen at the end of the chain
// compounds step by step.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/tsfold/flownet"
	"github.com/tsfold/flownet/netlib"
)

func main() {
	steps := flag.Int("steps", 4, "timesteps to run")
	verbose := flag.BoolP("verbose", "v", false, "log compilation and runtime events")
	cfgPath := flag.String("config", "", "YAML run configuration (overrides -steps)")
	flag.Parse()

	log := zerolog.Nop()
	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	opts := []flownet.Option{flownet.WithLogger(log)}
	var cfg flownet.RunConfig = flownet.FirstModel{}
	cond := flownet.RunCondition(flownet.RunSteps{Steps: *steps, Blocking: true})
	if *cfgPath != "" {
		fc, err := flownet.LoadRunConfigFile(*cfgPath)
		if err != nil {
			fatal(err)
		}
		cfg, cond = fc, fc.Condition()
		if fc.Buffer > 0 {
			opts = append(opts, flownet.WithChannelBuffer(fc.Buffer))
		}
	}

	net := flownet.NewNet(opts...)
	shape := flownet.Shape{1}

	src := net.NewProcess("src")
	src.NewOut("out", shape, flownet.Float64)
	src.AddModel(netlib.Generator("out", func(step int) *flownet.Tensor {
		return flownet.Full(shape, 1)
	}))

	var stages []*flownet.Process
	var vars []*flownet.Var
	prev := src.Out("out")
	for i := 1; i <= 2; i++ {
		p := net.NewProcess(fmt.Sprintf("stage%d", i))
		p.NewIn("in", shape, flownet.Float64, flownet.Required())
		p.NewOut("out", shape, flownet.Float64)
		v := p.NewVar("acc", shape, 1)
		p.AddModel(netlib.Accumulate("in", "out", "acc"))
		if err := prev.Connect(p.In("in")); err != nil {
			fatal(err)
		}
		stages = append(stages, p)
		vars = append(vars, v)
		prev = p.Out("out")
	}

	exe, err := net.Compile(cfg)
	if err != nil {
		fatal(err)
	}
	defer exe.Stop()

	if err := exe.Run(cond); err != nil {
		fatal(err)
	}
	switch c := cond.(type) {
	case flownet.RunSteps:
		if !c.Blocking {
			if err := exe.Wait(); err != nil {
				fatal(err)
			}
		}
	case flownet.RunContinuous:
		time.Sleep(200 * time.Millisecond)
		if err := exe.Pause(); err != nil {
			fatal(err)
		}
	}

	for i, p := range stages {
		val, err := exe.VarValue(vars[i])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%s acc = %v\n", p.Name(), val.Data())
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "flownet-demo:", err)
	os.Exit(1)
}
