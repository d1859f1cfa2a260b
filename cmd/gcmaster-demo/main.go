package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/inhies/go-bytesize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	gc "gc_master"
	"gc_master/internal/config"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "YAML config file (defaults apply to missing fields)",
	},
	&cli.StringFlag{
		Name:  "heap-size",
		Value: "",
		Usage: "heap size such as 4MB, overrides heap_size from the config",
	},
	&cli.StringFlag{
		Name:  "backing-file",
		Value: "",
		Usage: "map the heap onto this file instead of anonymous memory",
	},
}

func loadConfig(c *cli.Context) (gc.Config, error) {
	cfg := gc.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = gc.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if s := c.String("heap-size"); s != "" {
		size, err := config.ParseSize(s)
		if err != nil {
			return cfg, err
		}
		cfg.HeapSize = size
	}
	if f := c.String("backing-file"); f != "" {
		cfg.Backing = f
	}
	return cfg, nil
}

// churn 是一个随机 mutator：每轮新建 objects 个对象并随机互连，
// 期间所有新对象都挂在根上，轮末只留下一部分作为长期根。
type churn struct {
	rt   *gc.Runtime
	rng  *rand.Rand
	keep int

	long []*gc.Addr
}

func (m *churn) cycle(objects int) error {
	var round []*gc.Addr
	for i := 0; i < objects; i++ {
		obj, err := m.rt.New(m.rng.Intn(5), m.rng.Intn(65))
		if err != nil {
			return err
		}
		slot := m.rt.NewRoot()
		*slot = obj
		round = append(round, slot)

		for j := 0; j < m.rt.NumRefs(obj); j++ {
			if t := m.pick(round); t != gc.Null {
				m.rt.SetRef(obj, j, t)
			}
		}
		data := m.rt.Data(obj)
		for k := range data {
			data[k] = byte(i)
		}
		if m.rng.Intn(16) == 0 {
			// 原地增长失败是预期内的，对象保持原样
			if err := m.rt.Grow(obj, len(data)+8); err != nil && !errors.Is(err, gc.ErrCannotResize) {
				return err
			}
		}
	}
	for _, slot := range round {
		if len(m.long) < m.keep && m.rng.Intn(4) == 0 {
			m.long = append(m.long, slot)
			continue
		}
		if len(m.long) > 0 && m.rng.Intn(8) == 0 {
			i := m.rng.Intn(len(m.long))
			m.rt.DropRoot(m.long[i])
			m.long[i] = slot
			continue
		}
		m.rt.DropRoot(slot)
	}
	return nil
}

// pick 随机返回一个当前挂在根上的对象，可能为 Null。
func (m *churn) pick(round []*gc.Addr) gc.Addr {
	n := len(round) + len(m.long)
	i := m.rng.Intn(n + 1)
	switch {
	case i < len(round):
		return *round[i]
	case i < n:
		return *m.long[i-len(round)]
	}
	return gc.Null
}

type shutdowner interface {
	Shutdown(b gc.Behavior) error
}

// shutdown 释放堆；err 为空时用释放的错误（同步、解除映射）填充它。
func shutdown(g shutdowner, b gc.Behavior, err *error) {
	if serr := g.Shutdown(b); *err == nil {
		*err = serr
	}
}

func printStats(w io.Writer, st gc.Stats) {
	size := func(n uint64) string { return bytesize.ByteSize(n).String() }
	fmt.Fprintf(w, "heap=%s free=%s live_objects=%d\n", size(st.HeapSize), size(st.FreeBytes), st.LiveObjects)
	fmt.Fprintf(w, "collections=%d allocs=%d failed=%d allocated=%s\n",
		st.Collections, st.Allocs, st.FailedAllocs, size(st.AllocatedBytes))
	fmt.Fprintf(w, "last_marked=%s last_freed=%d\n", size(st.LastMarkedBytes), st.LastFreedObjects)
	if st.MarkTime > 0 || st.SweepTime > 0 {
		fmt.Fprintf(w, "max_occupancy=%s mark=%v sweep=%v\n", size(st.MaxOccupancy), st.MarkTime, st.SweepTime)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "churn random object graphs through allocate/collect cycles",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "cycles",
			Value: 100,
			Usage: "number of collect cycles",
		},
		&cli.IntFlag{
			Name:  "objects",
			Value: 1000,
			Usage: "objects allocated per cycle",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "random seed",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log every collection at info level",
		},
		&cli.BoolFlag{
			Name:  "profile",
			Usage: "track mark/sweep time and max occupancy",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "hide the progress bar",
		},
	},
	Action: func(c *cli.Context) (err error) {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		g, err := gc.Open(cfg, gc.WithLogger(cfg.Logger(os.Stderr)))
		if err != nil {
			return err
		}
		rt, err := gc.NewRuntime(g)
		if err != nil {
			_ = g.Shutdown(nil)
			return err
		}
		defer shutdown(g, rt, &err)
		rt.SetVerbose(c.Bool("verbose"))
		rt.SetProfile(c.Bool("profile"))

		m := &churn{
			rt:   rt,
			rng:  rand.New(rand.NewSource(c.Int64("seed"))),
			keep: c.Int("objects") / 4,
		}
		cycles := c.Int("cycles")
		var bar *progressbar.ProgressBar
		if !c.Bool("quiet") {
			bar = progressbar.Default(int64(cycles), "collect")
		}
		for i := 0; i < cycles; i++ {
			if err := m.cycle(c.Int("objects")); err != nil {
				return errors.Wrapf(err, "cycle %d", i)
			}
			g.Collect(rt)
			if cfg.Verify {
				if err := g.Validate(rt); err != nil {
					return errors.Wrapf(err, "cycle %d", i)
				}
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}
		if bar != nil {
			_ = bar.Finish()
		}
		if err := g.Validate(rt); err != nil {
			return err
		}
		printStats(os.Stdout, g.Stats())
		return nil
	},
}

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "print the effective configuration as YAML",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		out, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gcmaster-demo",
		Usage: "drive the mark-and-sweep heap with a synthetic mutator",
		Flags: globalFlags,
		Commands: []*cli.Command{
			runCommand,
			configCommand,
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
