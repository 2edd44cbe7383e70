package merger

import (
	"context"
	"errors"
	"fmt"
	"os"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/pcsx2-updater/internal/logger"
)

// replaceRunning swaps the running executable for source and removes source.
func replaceRunning(ctx context.Context, source, target string) error {
	logger.InfoKV(ctx, "Replacing running executable", "target", target)

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, errors.Join(errMoveFailed, err))
	}

	data, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, errors.Join(errMoveFailed, err))
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: info.Mode().Perm(),
	}

	err = goupdate.Apply(data, options)

	if closeErr := data.Close(); closeErr != nil {
		logger.WarnKV(ctx, "Failed to close replacement", "file", source, "error", closeErr)
	}

	if err != nil {
		return fmt.Errorf("apply %s: %w", target, errors.Join(errMoveFailed, err))
	}

	if err = os.Remove(source); err != nil {
		return fmt.Errorf("remove %s: %w", source, errors.Join(errMoveFailed, err))
	}

	return nil
}
