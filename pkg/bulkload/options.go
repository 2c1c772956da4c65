/*
	Copyright 2023 Google Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

		https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package bulkload

import (
	"fmt"

	"go.uber.org/zap"
)

// OptionFn defines a user-supplied option to Load.
type OptionFn func(o *options) error

// BatchSize defines the number of input lines handled as one work item.
// Defaults to 5000.
func BatchSize(batchSize uint) OptionFn {
	return func(o *options) error {
		if batchSize == 0 {
			return fmt.Errorf("batch size must be at least 1")
		}
		o.batchSize = batchSize
		return nil
	}
}

// Concurrency specifies the number of goroutines parsing and validating
// batches.  Insertion is always performed by a single goroutine.  Defaults
// to 1.
func Concurrency(concurrency uint) OptionFn {
	return func(o *options) error {
		if concurrency == 0 {
			return fmt.Errorf("concurrency must be at least 1")
		}
		o.concurrency = concurrency
		return nil
	}
}

// InputBufferSize defines the number of batches that may wait between
// stages.  Defaults to 1.
func InputBufferSize(inputBufferSize uint) OptionFn {
	return func(o *options) error {
		if inputBufferSize == 0 {
			return fmt.Errorf("input buffer size must be at least 1")
		}
		o.inputBufferSize = inputBufferSize
		return nil
	}
}

// MaxLineBytes bounds the length of a single input line.  Defaults to 1MiB.
func MaxLineBytes(maxLineBytes uint) OptionFn {
	return func(o *options) error {
		if maxLineBytes < 64 {
			return fmt.Errorf("max line bytes must be at least 64")
		}
		o.maxLineBytes = maxLineBytes
		return nil
	}
}

// SkipInvalid counts and skips lines holding unresolvable symbols rather than
// aborting the load.
func SkipInvalid(skip bool) OptionFn {
	return func(o *options) error {
		o.skipInvalid = skip
		return nil
	}
}

// NormalizeNFC rewrites every sequence to Unicode normalization form C before
// validation, so composed and decomposed spellings share a path.
func NormalizeNFC(normalize bool) OptionFn {
	return func(o *options) error {
		o.normalize = normalize
		return nil
	}
}

// Logger sets the logger progress and skipped lines are reported to.
func Logger(logger *zap.Logger) OptionFn {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

type options struct {
	batchSize       uint
	concurrency     uint
	inputBufferSize uint
	maxLineBytes    uint
	skipInvalid     bool
	normalize       bool
	logger          *zap.Logger
}

func buildOptions(fns ...OptionFn) (*options, error) {
	ret := &options{
		batchSize:       5000,
		concurrency:     1,
		inputBufferSize: 1,
		maxLineBytes:    1 << 20,
		logger:          zap.NewNop(),
	}
	for _, fn := range fns {
		if err := fn(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}
