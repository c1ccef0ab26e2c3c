package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background task processing.
// Example usage:
//
//	scheduler := NewScheduler(services, tracker, options)
//	scheduler.Start()
//	defer scheduler.Stop()
//	taskID, err := scheduler.Dispatcher().Optimize(articleID)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
