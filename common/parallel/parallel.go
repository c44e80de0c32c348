// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package parallel

import (
	"context"
	"sync"

	"github.com/gorse-io/latent/base/log"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Parallel runs worker on every job id in [0, nJobs) with nWorkers goroutines. Workers
// claim job ids in ascending order. The first failing job, a panicking job or the
// cancellation of ctx stops the remaining jobs, and its error is returned.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	var next atomic.Int64
	var wg sync.WaitGroup
	for workerId := 0; workerId < max(nWorkers, 1); workerId++ {
		wg.Go(func() {
			for ctx.Err() == nil {
				jobId := int(next.Inc() - 1)
				if jobId >= nJobs {
					return
				}
				if err := runJob(worker, workerId, jobId); err != nil {
					cancel(err)
					return
				}
			}
		})
	}
	wg.Wait()
	if err := context.Cause(ctx); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// For runs worker on every job id in [0, nJobs) with nWorkers goroutines.
func For(ctx context.Context, nJobs, nWorkers int, worker func(jobId int)) error {
	return Parallel(ctx, nJobs, nWorkers, func(_, jobId int) error {
		worker(jobId)
		return nil
	})
}

func runJob(worker func(workerId, jobId int) error, workerId, jobId int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger().Error("panic recovered", zap.Int("job_id", jobId), zap.Any("panic", r))
			err = errors.Errorf("panic in job %d: %v", jobId, r)
		}
	}()
	return worker(workerId, jobId)
}
