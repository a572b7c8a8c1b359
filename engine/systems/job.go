package systems

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

/**
 * @brief A unit of work for the job system. Run executes on a worker
 * goroutine; OnComplete and OnFailure are deferred to the next Update so they
 * run on the thread that owns the job system.
 */
type JobTask struct {
	Name       string
	Run        func() (any, error)
	OnComplete func(result any)
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result any
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	logger     *log.Logger

	// submit guards closed and is read-held across the channel send
	submit  sync.RWMutex
	closed  bool
	mu      sync.Mutex
	results []jobResult
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		logger:     core.Logger("Jobs"),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.execute(job)
			}
		}()
	}
}

func (js *JobSystem) execute(job JobTask) {
	res := jobResult{task: job}
	func() {
		defer func() {
			if p := recover(); p != nil {
				res.err = fmt.Errorf("job %q panicked: %v", job.Name, p)
			}
		}()
		res.result, res.err = job.Run()
	}()
	if res.err != nil {
		js.logger.Error("job failed", "job", job.Name, "err", res.err)
	}
	if job.OnComplete == nil && job.OnFailure == nil {
		return
	}
	js.mu.Lock()
	js.results = append(js.results, res)
	js.mu.Unlock()
}

/**
 * @brief Shuts the job system down. Queued jobs are drained and their
 * callbacks dispatched before Shutdown returns.
 */
func (js *JobSystem) Shutdown() error {
	js.submit.Lock()
	if js.closed {
		js.submit.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.submit.Unlock()

	js.wg.Wait()
	js.Update()
	return nil
}

/**
 * @brief Updates the job system. Should happen once an update cycle.
 * Dispatches the callbacks of every job finished since the last call.
 * @returns The number of callbacks dispatched.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	results := js.results
	js.results = nil
	js.mu.Unlock()

	for _, r := range results {
		if r.err != nil {
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
	return len(results)
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 * @param info The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.Run == nil {
		return fmt.Errorf("job %q has no Run: %w", jt.Name, core.ErrNilArgument)
	}
	js.submit.RLock()
	defer js.submit.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}
