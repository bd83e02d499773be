// Package process provides child process management for task runs.
//
// A Process wraps an exec.Cmd and starts the child in its own process group
// so signals reach everything the task's shell spawned. Its Done channel
// closes once the exit status is final.
//
// The Supervisor tracks live processes by run ID and tears them all down on
// shutdown, sending SIGTERM first and SIGKILL once the grace period expires:
//
//	supervisor := process.NewSupervisor()
//	defer supervisor.Shutdown(5 * time.Second)
//
//	cmd := exec.Command("/bin/sh", "-c", "make all")
//	proc, err := supervisor.Start(runID, "build", cmd)
//	if err != nil {
//	    return err
//	}
//	<-proc.Done()
//	fmt.Println(proc.Status())
package process
