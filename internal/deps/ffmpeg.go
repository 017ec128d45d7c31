package deps

import (
	"os"
	"runtime"
)

// CheckFFmpeg reports the ffmpeg binary used for audio decoding and silence
// compaction. Command is the resolved path when ffmpeg is found.
func CheckFFmpeg(configured string) Status {
	status := Check(Requirement{
		Name:        "FFmpeg",
		Command:     configured,
		Description: "Decodes call audio for compaction and transcription",
	})
	if status.Command == "" {
		status = Check(Requirement{
			Name:        status.Name,
			Command:     executableName("ffmpeg"),
			Description: status.Description,
		})
	}
	if status.Available {
		status.Command = status.Path
	}
	return status
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
