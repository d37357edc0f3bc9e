// Package process runs external commands on behalf of the pipeline.
//
// A Process is one bounded run of a subprocess:
//   - Cancelling the run context sends SIGINT and waits for a graceful exit
//   - The process is killed with SIGKILL if the graceful timeout elapses
//   - Output is streamed line by line through a pluggable LogParser
//   - Output lines can be observed with an OutputHandler
//
// Example:
//
//	proc := process.New("merge-1", []string{"ffmpeg", "-i", "a.mov", "out.mp4"}, logger)
//	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	if err := proc.Run(ctx); err != nil {
//	    var exitErr *process.ExitError
//	    if errors.As(err, &exitErr) {
//	        log.Printf("exit code %d", exitErr.Code)
//	    }
//	}
package process
