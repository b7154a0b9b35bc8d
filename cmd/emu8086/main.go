package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emu8086/emu8086/internal/cpu"
	"github.com/emu8086/emu8086/internal/debug"
	"github.com/emu8086/emu8086/internal/disk"
)

func main() {
	var biosPath string
	var bootPath string
	var memSize int
	var maxSteps int

	rootCmd := &cobra.Command{
		Use:   "emu8086",
		Short: "A real-mode 8086 emulator core",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a BIOS image to completion or HLT",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCPU(biosPath, bootPath, memSize)
			if err != nil {
				return err
			}
			res, err := c.Run(maxSteps)
			if err != nil {
				return fmt.Errorf("execution fault: %w", err)
			}
			if res == cpu.HaltedEarly {
				fmt.Println("halted")
			} else {
				fmt.Printf("stopped after %d steps (still running)\n", maxSteps)
			}
			return nil
		},
	}

	debugCmd := &cobra.Command{
		Use:   "debug",
		Short: "Run under the interactive step debugger",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCPU(biosPath, bootPath, memSize)
			if err != nil {
				return err
			}
			return debug.Run(c)
		},
	}

	for _, c := range []*cobra.Command{runCmd, debugCmd} {
		c.Flags().StringVar(&biosPath, "bios", "", "path to a 0x10000-byte BIOS image (required)")
		c.Flags().StringVar(&bootPath, "boot", "", "path to a floppy/hard-disk image to attach as drive 0")
		c.Flags().IntVar(&memSize, "mem", 1<<20, "RAM size in bytes (clamped to 1 MiB)")
		c.Flags().IntVar(&maxSteps, "steps", 10_000_000, "maximum instructions to execute (run only)")
		_ = c.MarkFlagRequired("bios")
	}

	rootCmd.AddCommand(runCmd, debugCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCPU(biosPath, bootPath string, memSize int) (*cpu.CPU, error) {
	bios, err := os.ReadFile(biosPath)
	if err != nil {
		return nil, fmt.Errorf("read bios: %w", err)
	}

	c, err := cpu.New(bios, memSize)
	if err != nil {
		return nil, fmt.Errorf("init cpu: %w", err)
	}

	if bootPath != "" {
		drive, err := loadDrive(bootPath)
		if err != nil {
			return nil, fmt.Errorf("load boot image: %w", err)
		}
		if err := c.AttachDevice(drive); err != nil {
			return nil, fmt.Errorf("attach boot drive: %w", err)
		}
	}

	return c, nil
}

// loadDrive chooses between the IMD container format and a flat raw
// image, by extension and (for raw images) size: 1474560 bytes is a
// standard 1.44 MB floppy, 368640 a 360 KB floppy; anything else is
// treated as a 1.44 MB image regardless of its actual length.
func loadDrive(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".imd") {
		return disk.ParseIMD(data)
	}

	switch len(data) {
	case 368640:
		return disk.StandardFloppy360K(data), nil
	default:
		return disk.StandardFloppy1440K(data), nil
	}
}
