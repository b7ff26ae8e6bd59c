package app

import (
	"errors"
	"fmt"
	"strconv"

	"bitrt/config"
	"bitrt/hal"
	"bitrt/kernel"
)

// shared is the application data the demo tasks exchange. Each part is only
// touched with the named kernel resource held.
type shared struct {
	// guarded by "bus"
	ring     [8]uint32
	head     int
	count    int
	consumed uint64
	sum      uint64

	// guarded by "stats"
	presses uint64
	reports uint64

	led   hal.LED
	ledOn bool
	seed  uint32
}

func (s *shared) push(v uint32) {
	s.ring[(s.head+s.count)%len(s.ring)] = v
	if s.count < len(s.ring) {
		s.count++
	} else {
		s.head = (s.head + 1) % len(s.ring)
	}
}

func (s *shared) pop() (uint32, bool) {
	if s.count == 0 {
		return 0, false
	}
	v := s.ring[s.head]
	s.head = (s.head + 1) % len(s.ring)
	s.count--
	return v, true
}

// sample is a cheap xorshift reading standing in for a sensor.
func (s *shared) sample() uint32 {
	x := s.seed
	if x == 0 {
		x = 2463534242
	}
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.seed = x
	return x % 1024
}

func param(params map[string]string, key string) (string, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	return v, nil
}

func blocked(err error) bool { return errors.Is(err, kernel.ErrBlocked) }

// Registry returns the demo behaviours with no LED attached. It is enough
// to resolve and check a configuration file.
func Registry() config.Registry {
	return (&shared{}).Behaviours()
}

// Behaviours returns the registry of demo task bodies sharing s.
func (s *shared) Behaviours() config.Registry {
	return config.Registry{
		"button":   s.button,
		"worker":   s.worker,
		"sampler":  s.sampler,
		"consumer": s.consumer,
		"watchdog": s.watchdog,
		"blinker":  s.blinker,
		"balancer": s.balancer,
		"reporter": s.reporter,
	}
}

// button turns every key event into one unit of work.
func (s *shared) button(n *config.Names, params map[string]string) (kernel.Entry, error) {
	ev, sem, err := eventAndSem(n, params)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		if err := c.WaitEvent(ev); err != nil {
			return
		}
		if err := c.Signal(sem); err != nil {
			c.Logf("button: work dropped: %v", err)
		}
		c.Yield()
	}, nil
}

func (s *shared) worker(n *config.Names, params map[string]string) (kernel.Entry, error) {
	sem, res, err := semAndResource(n, params)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		if err := c.WaitSem(sem); err != nil {
			return
		}
		err := c.Acquire(res, func() error {
			s.presses++
			return nil
		})
		if err != nil {
			c.Logf("worker: %v", err)
		}
		c.Yield()
	}, nil
}

func (s *shared) sampler(n *config.Names, params map[string]string) (kernel.Entry, error) {
	sem, res, err := semAndResource(n, params)
	if err != nil {
		return nil, err
	}
	evName, err := param(params, "event")
	if err != nil {
		return nil, err
	}
	ev, err := n.Event(evName)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		err := c.Acquire(res, func() error {
			s.push(s.sample())
			return nil
		})
		if err != nil {
			c.Logf("sampler: %v", err)
			return
		}
		if err := c.Signal(sem); err != nil && !errors.Is(err, kernel.ErrSemaphoreOverflow) {
			c.Logf("sampler: %v", err)
		}
		c.PostEvent(ev)
	}, nil
}

func (s *shared) consumer(n *config.Names, params map[string]string) (kernel.Entry, error) {
	sem, res, err := semAndResource(n, params)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		if err := c.WaitSem(sem); err != nil {
			return
		}
		var avg uint64
		report := false
		err := c.Acquire(res, func() error {
			v, ok := s.pop()
			if !ok {
				return nil
			}
			s.consumed++
			s.sum += uint64(v)
			if s.consumed%100 == 0 {
				avg, report = s.sum/s.consumed, true
			}
			return nil
		})
		if err != nil {
			c.Logf("consumer: %v", err)
		}
		if report {
			c.Logf("consumer: average %d", avg)
		}
		c.Yield()
	}, nil
}

func (s *shared) watchdog(n *config.Names, params map[string]string) (kernel.Entry, error) {
	evName, err := param(params, "event")
	if err != nil {
		return nil, err
	}
	ev, err := n.Event(evName)
	if err != nil {
		return nil, err
	}
	timeout := uint32(100)
	if v, ok := params["timeout"]; ok {
		t, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		timeout = uint32(t)
	}
	return func(c *kernel.Context) {
		mask := c.Kernel().EventMask(ev)
		_, err := c.WaitTimeout(mask, timeout)
		switch {
		case blocked(err):
			return
		case errors.Is(err, kernel.ErrWaitTimeout):
			c.Logf("watchdog: no heartbeat for %d ticks", timeout)
		}
		c.Yield()
	}, nil
}

func (s *shared) blinker(n *config.Names, params map[string]string) (kernel.Entry, error) {
	name, err := param(params, "sem")
	if err != nil {
		return nil, err
	}
	sem, err := n.Semaphore(name)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		if err := c.WaitSem(sem); err != nil {
			return
		}
		if s.led != nil {
			if s.ledOn {
				s.led.Low()
			} else {
				s.led.High()
			}
		}
		s.ledOn = !s.ledOn
		c.Yield()
	}, nil
}

// balancer moves a task to the other core every time it runs.
func (s *shared) balancer(n *config.Names, params map[string]string) (kernel.Entry, error) {
	name, err := param(params, "task")
	if err != nil {
		return nil, err
	}
	target, err := n.Task(name)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		k := c.Kernel()
		_, from, err := k.TaskState(target)
		if err != nil {
			return
		}
		to := (from + 1) % kernel.NumCores
		if err := k.Migrate(target, to); err != nil {
			c.Logf("balancer: %v", err)
			return
		}
		c.Logf("balancer: %s moved to core %d", name, to)
	}, nil
}

func (s *shared) reporter(n *config.Names, params map[string]string) (kernel.Entry, error) {
	sem, res, err := semAndResource(n, params)
	if err != nil {
		return nil, err
	}
	return func(c *kernel.Context) {
		var presses, reports uint64
		c.DisablePreemption()
		err := c.Acquire(res, func() error {
			s.reports++
			presses, reports = s.presses, s.reports
			return nil
		})
		c.EnablePreemption()
		if err != nil {
			c.Logf("reporter: %v", err)
			return
		}
		c.Logf("reporter: report %d, %d presses", reports, presses)
		if _, err := c.Broadcast(sem); err != nil {
			c.Logf("reporter: %v", err)
		}
	}, nil
}

func eventAndSem(n *config.Names, params map[string]string) (kernel.EventID, kernel.SemID, error) {
	evName, err := param(params, "event")
	if err != nil {
		return 0, 0, err
	}
	ev, err := n.Event(evName)
	if err != nil {
		return 0, 0, err
	}
	semName, err := param(params, "sem")
	if err != nil {
		return 0, 0, err
	}
	sem, err := n.Semaphore(semName)
	if err != nil {
		return 0, 0, err
	}
	return ev, sem, nil
}

func semAndResource(n *config.Names, params map[string]string) (kernel.SemID, kernel.ResourceID, error) {
	semName, err := param(params, "sem")
	if err != nil {
		return 0, 0, err
	}
	sem, err := n.Semaphore(semName)
	if err != nil {
		return 0, 0, err
	}
	resName, err := param(params, "resource")
	if err != nil {
		return 0, 0, err
	}
	res, err := n.Resource(resName)
	if err != nil {
		return 0, 0, err
	}
	return sem, res, nil
}
