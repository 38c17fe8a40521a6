package tool

import "github.com/agentrt/core/internal/apperr"

var errNoCWD = apperr.InvalidRequestf("no working directory set for this session")
