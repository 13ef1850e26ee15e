// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/hashicorp/go-metrics"
)

// RecordCronJobRun records a cron job run, for instrumenting the
// robfig/cron entries driving the status reporter and periodic progress
// printer.
func RecordCronJobRun(metricsSink metrics.MetricSink, jobName string, duration time.Duration, err error) {
	if metricsSink == nil {
		return
	}

	labels := []metrics.Label{
		{Name: "job_name", Value: jobName},
	}

	metricsSink.IncrCounterWithLabels([]string{"cron", "job", "runs", "total"}, 1, labels)
	metricsSink.AddSampleWithLabels([]string{"cron", "job", "run", "duration", "seconds"}, float32(duration.Seconds()), labels)
	metricsSink.SetGaugeWithLabels([]string{"cron", "job", "last", "run", "time", "seconds"}, float32(time.Now().Unix()), labels)

	if err != nil {
		metricsSink.IncrCounterWithLabels([]string{"cron", "job", "errors", "total"}, 1, labels)
	}
}

// UpdateCronJobNextRun updates the next run time for a cron job.
func UpdateCronJobNextRun(metricsSink metrics.MetricSink, jobName string, nextRun time.Time) {
	if metricsSink == nil || nextRun.IsZero() {
		return
	}

	labels := []metrics.Label{
		{Name: "job_name", Value: jobName},
	}

	metricsSink.SetGaugeWithLabels([]string{"cron", "job", "next", "run", "time", "seconds"}, float32(nextRun.Unix()), labels)
}

// UpdateCronJobsCount updates the total number of registered cron jobs.
func UpdateCronJobsCount(metricsSink metrics.MetricSink, count int) {
	if metricsSink == nil {
		return
	}

	metricsSink.SetGauge([]string{"cron", "jobs", "total"}, float32(count))
}
