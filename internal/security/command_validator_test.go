package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandValidator(t *testing.T) {
	cv := NewCommandValidator([]string{"rm -rf /", "mkfs", "dd if=/dev/zero of=/dev/sd", ":(){ :|:& };:"})

	blocked := []string{
		"rm -rf /",
		"sudo rm -rf / --no-preserve-root",
		"rm -fr /*",
		"rm -r -f ~",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda bs=1M",
		"dd if=/dev/urandom of=/dev/nvme0n1",
		":(){ :|:& };:",
		": ( ) { : | : & } ; :",
		"cat image > /dev/sdb",
	}
	for _, cmd := range blocked {
		assert.False(t, cv.Validate(cmd).Valid, "expected %q to be blocked", cmd)
	}

	allowed := []string{
		"ls -la",
		"rm -rf ./build",
		"rm -rf /tmp/azul-test",
		"go test ./...",
		"dd if=input.bin of=output.bin",
		"echo hello > out.txt",
	}
	for _, cmd := range allowed {
		res := cv.Validate(cmd)
		assert.True(t, res.Valid, "expected %q to be allowed, got %s (%s)", cmd, res.Reason, res.Pattern)
	}
}

func TestCommandValidatorEmpty(t *testing.T) {
	cv := NewCommandValidator(nil)
	res := cv.Validate("   ")
	assert.False(t, res.Valid)
	assert.Equal(t, "empty command", res.Reason)
}
