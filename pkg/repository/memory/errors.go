package memory

import "github.com/shift-lab/argus/pkg/domain/model"

// ErrNotFound aliases the shared repository sentinel
var ErrNotFound = model.ErrNotFound
