package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"media-pipeline-service/pkg/logger"
)

// lineHandler 处理一行输出，返回 true 表示该行已消费，不计入错误尾部
type lineHandler func(line string) bool

const tailLines = 50

// runCommand 启动外部命令并逐行扫描 stderr/stdout，ctx 结束时杀掉进程
func runCommand(ctx context.Context, cmd *exec.Cmd, handle lineHandler) error {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	scanDone := make(chan []string, 1)
	go func() {
		scanDone <- scanLines(pr, handle)
	}()

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		done <- err
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		<-scanDone
		return ctx.Err()
	case err := <-done:
		tail := <-scanDone
		if err != nil {
			if len(tail) > 0 {
				logger.Errorf("%s failed tail_output=%s", cmd.Path, strings.Join(tail, "\n"))
			}
			return fmt.Errorf("%s exited: %w%s", cmd.Path, err, lastLine(tail))
		}
		return nil
	}
}

func scanLines(r io.Reader, handle lineHandler) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	tail := make([]string, 0, tailLines)
	for scanner.Scan() {
		line := scanner.Text()
		if handle != nil && handle(line) {
			continue
		}
		if len(tail) >= tailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
	}
	// 排空剩余输出，避免子进程阻塞在写管道
	_, _ = io.Copy(io.Discard, r)
	return tail
}

func lastLine(tail []string) string {
	for i := len(tail) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(tail[i]); s != "" {
			return ": " + s
		}
	}
	return ""
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
