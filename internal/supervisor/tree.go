package supervisor

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// maxTreeDepth bounds descendant enumeration.
const maxTreeDepth = 16

// killTree kills root and everything it spawned. Descendants are collected
// before anything is killed so orphans cannot escape by being reparented.
// All kill errors are best effort and only logged.
func killTree(ctx context.Context, logger zerolog.Logger, root *os.Process) {
	descendants := collectDescendants(ctx, int32(root.Pid))

	if err := killGroup(root.Pid); err != nil {
		logger.Debug().Err(err).Int("pid", root.Pid).Msg("Process group kill failed")
	}

	// Deepest first.
	for i := len(descendants) - 1; i >= 0; i-- {
		d := descendants[i]
		if err := d.KillWithContext(ctx); err != nil {
			logger.Debug().Err(err).Int32("pid", d.Pid).Msg("Descendant kill failed")
		}
	}

	if err := root.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug().Err(err).Int("pid", root.Pid).Msg("Process kill failed")
	}
}

// collectDescendants walks the process tree below pid breadth first.
func collectDescendants(ctx context.Context, pid int32) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}

	var out []*process.Process
	seen := map[int32]bool{pid: true}
	level := []*process.Process{root}
	for depth := 0; depth < maxTreeDepth && len(level) > 0; depth++ {
		var next []*process.Process
		for _, p := range level {
			children, err := p.ChildrenWithContext(ctx)
			if err != nil {
				continue
			}
			for _, c := range children {
				if seen[c.Pid] {
					continue
				}
				seen[c.Pid] = true
				out = append(out, c)
				next = append(next, c)
			}
		}
		level = next
	}
	return out
}
