package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-tty"
	"github.com/rs/zerolog"

	"stivaleos/kernel/klog"
)

var (
	logger = zerolog.Nop()

	errMissingCommand = errors.New("missing command")
	errMissingFlag    = errors.New("missing required flag")
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands []command

func init() {
	commands = []command{
		{"build", "build a boot image from a TOML description", runBuild},
		{"dump", "print every tag of a boot image", runDump},
		{"render", "render the memory map of a boot image to a PNG file", runRender},
		{"browse", "interactively browse the tags of a boot image", runBrowse},
		{"smp", "fill in the SMP record of an application processor", runSMP},
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[bootinfo] error: %s\n", err.Error())
	os.Exit(1)
}

func usage() {
	fmt.Fprint(os.Stderr, "bootinfo: build and inspect stivale2 boot information images\n\n")
	fmt.Fprint(os.Stderr, "Usage: bootinfo command [options]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
}

// addrValue is a flag.Value for addresses that accepts any base supported
// by strconv.ParseUint.
type addrValue uint64

func (v *addrValue) String() string { return fmt.Sprintf("%#x", uint64(*v)) }

func (v *addrValue) Set(s string) error {
	parsed, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return err
	}
	*v = addrValue(parsed)
	return nil
}

// imageFlags are shared by all commands that read an image.
type imageFlags struct {
	path       string
	base       addrValue
	structAddr addrValue
}

func (f *imageFlags) register(fs *flag.FlagSet) {
	f.base = DefaultBase
	fs.StringVar(&f.path, "image", "", "the boot image file")
	fs.Var(&f.base, "base", "the address where the image was placed")
	fs.Var(&f.structAddr, "struct", "the address of the stivale2 struct (defaults to the image base)")
}

func (f *imageFlags) open(writable bool) (*mappedImage, error) {
	if f.path == "" {
		return nil, fmt.Errorf("%w: -image", errMissingFlag)
	}

	return openImage(f.path, uint64(f.base), writable)
}

func runBuild(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	config := fs.String("config", "", "the TOML image description")
	output := fs.String("out", "-", "a file to write the image or - to output to STDOUT")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *config == "" {
		return fmt.Errorf("%w: -config", errMissingFlag)
	}

	cfg, err := loadImageConfig(*config)
	if err != nil {
		return err
	}

	img, err := cfg.build()
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}

	logger.Info().Str("base", fmt.Sprintf("%#x", img.Base)).Int("size", len(img.Data)).Msg("built image")

	switch *output {
	case "-":
		_, err = img.WriteTo(stdout)
		return err
	default:
		return os.WriteFile(*output, img.Data, 0o644)
	}
}

func runDump(args []string, stdout io.Writer) error {
	var imgFlags imageFlags
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	imgFlags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	img, err := imgFlags.open(false)
	if err != nil {
		return err
	}
	defer img.Close()

	info, err := img.info(uint64(imgFlags.structAddr))
	if err != nil {
		return err
	}

	return dumpInfo(stdout, info)
}

func runRender(args []string, _ io.Writer) error {
	var imgFlags imageFlags
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	imgFlags.register(fs)
	output := fs.String("out", "memmap.png", "the PNG file to write")
	width := fs.Int("width", 800, "the image width in pixels")
	height := fs.Int("height", 600, "the image height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", *width, *height)
	}

	img, err := imgFlags.open(false)
	if err != nil {
		return err
	}
	defer img.Close()

	info, err := img.info(uint64(imgFlags.structAddr))
	if err != nil {
		return err
	}

	dc, err := renderMemoryMap(info, *width, *height)
	if err != nil {
		return err
	}

	logger.Info().Str("out", *output).Msg("rendered memory map")
	return dc.SavePNG(*output)
}

func runBrowse(args []string, _ io.Writer) error {
	var imgFlags imageFlags
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	imgFlags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	img, err := imgFlags.open(false)
	if err != nil {
		return err
	}
	defer img.Close()

	info, err := img.info(uint64(imgFlags.structAddr))
	if err != nil {
		return err
	}

	term, err := tty.Open()
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}
	defer term.Close()

	restore, err := term.Raw()
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer restore()

	return newBrowser(info).run(term, term.Output())
}

func runSMP(args []string, _ io.Writer) error {
	var (
		imgFlags            imageFlags
		stack, gotoAddr, xa addrValue
	)
	fs := flag.NewFlagSet("smp", flag.ContinueOnError)
	imgFlags.register(fs)
	cpu := fs.Int("cpu", -1, "the index of the SMP record to update")
	fs.Var(&stack, "stack", "the stack pointer for the processor")
	fs.Var(&gotoAddr, "goto", "the address the processor jumps to")
	fs.Var(&xa, "arg", "the extra argument passed to the processor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cpu < 0 {
		return fmt.Errorf("%w: -cpu", errMissingFlag)
	}
	if gotoAddr == 0 {
		return fmt.Errorf("%w: -goto", errMissingFlag)
	}

	img, err := imgFlags.open(true)
	if err != nil {
		return err
	}
	defer img.Close()

	info, err := img.info(uint64(imgFlags.structAddr))
	if err != nil {
		return err
	}

	return startCPU(info, *cpu, uint64(stack), uint64(gotoAddr), uint64(xa))
}

func runTool(args []string, stdout io.Writer) error {
	cfg := klog.DefaultConfig()
	klog.FromEnv(&cfg)
	logger = klog.Module(klog.New(os.Stderr, cfg), "bootinfo")

	if len(args) == 0 {
		usage()
		return errMissingCommand
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:], stdout)
		}
	}

	usage()
	return fmt.Errorf("unknown command %q", args[0])
}

func main() {
	if err := runTool(os.Args[1:], os.Stdout); err != nil {
		exit(err)
	}
}
