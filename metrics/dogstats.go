package metrics

import (
	"fmt"

	dogstats "github.com/DataDog/datadog-go/v5/statsd"
)

// dvDogStatsd metrics type
type dvDogStatsd struct {
	c *dogstats.Client
}

const (
	rateSampleAlways = 1.0
)

// newDogStatsd takes a server address and returns a dogstatsd metrics publisher
func newDogStatsd(server string, service string, tags ...Tag) (*dvDogStatsd, error) {
	defaults := []string{"service:" + service}
	for _, t := range tags {
		defaults = append(defaults, t.ddString())
	}

	c, err := dogstats.New(server,
		dogstats.WithMaxMessagesPerPayload(1000),
		dogstats.WithNamespace("deployverify"),
		dogstats.WithTags(defaults))
	if err != nil {
		return nil, err
	}
	return &dvDogStatsd{c: c}, nil
}

// Close closes statsd connections
func (s *dvDogStatsd) Close() {
	s.c.Close()
}

func (t Tag) ddString() string {
	if t.Value == "" {
		return t.Key
	}
	return fmt.Sprintf("%v:%v", t.Key, t.Value)
}

func ddTags(tags []Tag) []string {
	stags := make([]string, len(tags))
	for i, t := range tags {
		stags[i] = t.ddString()
	}
	return stags
}

// Add adds value to key
func (s *dvDogStatsd) Add(module, key string, value int64, tags ...Tag) {
	s.c.Count(fmt.Sprintf("%v.%v", module, key), value, ddTags(tags), rateSampleAlways)
}

// Gauge sets key to value
func (s *dvDogStatsd) Gauge(module, key string, value int64, tags ...Tag) {
	s.c.Gauge(fmt.Sprintf("%v.%v", module, key), float64(value), ddTags(tags), rateSampleAlways)
}
