package batch

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid batch request")

// Request describes one batch run.
type Request struct {
	RunID               string  `json:"run_id,omitempty"`
	RootDir             string  `json:"root_dir"`
	Recursive           bool    `json:"recursive"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IOUThreshold        float64 `json:"iou_threshold"`
}

// Validate returns all problems with the request, each wrapping ErrInvalidRequest.
func (r Request) Validate() error {
	var err error

	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRequest, "confidence threshold %v outside [0,1]", r.ConfidenceThreshold))
	}
	if r.IOUThreshold < 0 || r.IOUThreshold > 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRequest, "iou threshold %v outside [0,1]", r.IOUThreshold))
	}

	if strings.TrimSpace(r.RootDir) == "" {
		return multierr.Append(err, errors.Wrap(ErrInvalidRequest, "root directory is empty"))
	}
	info, statErr := os.Stat(r.RootDir)
	switch {
	case os.IsNotExist(statErr):
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRequest, "root directory %s does not exist", r.RootDir))
	case statErr != nil:
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRequest, "root directory %s: %v", r.RootDir, statErr))
	case !info.IsDir():
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRequest, "%s is not a directory", r.RootDir))
	}

	return err
}
