package laborstat

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/blsgeo/internal/apperr"
)

// Job is a YAML batch of statistic runs sharing a boundary and key.
//
//	boundary: aoi.geojson
//	api_key: <registration key>
//	predicate: contains
//	steps:
//	  - statistic: laus
//	    params: {measure: ["03", "06"]}
//	    output: laus.csv
type Job struct {
	Boundary   string    `yaml:"boundary"`
	APIKey     string    `yaml:"api_key"`
	Predicate  string    `yaml:"predicate"`
	Buffer     *float64  `yaml:"buffer"`
	FullSeries bool      `yaml:"full_series"`
	StartYear  int       `yaml:"start_year"`
	EndYear    int       `yaml:"end_year"`
	Steps      []JobStep `yaml:"steps"`
}

// JobStep is one statistic run. Unset request fields inherit from the job.
type JobStep struct {
	Statistic string              `yaml:"statistic"`
	Params    map[string][]string `yaml:"params"`
	Output    string              `yaml:"output"`
	Request   `yaml:",inline"`
}

// LoadJob reads and validates a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "laborstat: read job %s", path)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrapf(err, "laborstat: parse job %s", path)
	}
	if err := job.Validate(); err != nil {
		return nil, eris.Wrapf(err, "laborstat: job %s", path)
	}
	return &job, nil
}

// Validate checks that every step names a known statistic.
func (j *Job) Validate() error {
	var result *multierror.Error
	if len(j.Steps) == 0 {
		result = multierror.Append(result, apperr.InvalidArgument("steps", "job has no steps"))
	}
	for i, step := range j.Steps {
		if _, err := Lookup(step.Statistic); err != nil {
			result = multierror.Append(result, eris.Wrapf(err, "step %d", i+1))
		}
	}
	return result.ErrorOrNil()
}

// Request returns the effective request of step i, with job-level defaults
// filled in. apiKey is used when neither the step nor the job sets one.
func (j *Job) Request(i int, apiKey string) Request {
	req := j.Steps[i].Request
	if req.BoundaryPath == "" {
		req.BoundaryPath = j.Boundary
	}
	if req.APIKey == "" {
		req.APIKey = j.APIKey
	}
	if req.APIKey == "" {
		req.APIKey = apiKey
	}
	if req.Predicate == "" {
		req.Predicate = j.Predicate
	}
	if req.Buffer == nil {
		req.Buffer = j.Buffer
	}
	if !req.FullSeries {
		req.FullSeries = j.FullSeries
	}
	if req.StartYear == 0 {
		req.StartYear = j.StartYear
	}
	if req.EndYear == 0 {
		req.EndYear = j.EndYear
	}
	return req
}
