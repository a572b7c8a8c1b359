package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return "in_render_pass"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording_ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	}
	return "not_allocated"
}

type CommandOp uint8

const (
	OpBeginRenderPass CommandOp = iota
	OpEndRenderPass
	OpSetViewport
	OpBindPipeline
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpBindTexture
	OpPushConstants
	OpDraw
	OpDrawIndexed
)

/**
 * @brief One recorded vkCmd* call. Only the fields relevant to Op are set.
 */
type RecordedCommand struct {
	Op           CommandOp
	Pipeline     *VulkanPipeline
	Viewport     vk.Viewport
	Binding      uint32
	IndexType    vk.IndexType
	Format       vk.Format
	ClearValues  []vk.ClearValue
	VertexCount  uint32
	IndexCount   uint32
	FirstVertex  uint32
	FirstIndex   uint32
	VertexOffset int32
	Constants    []byte
}

/**
 * @brief A command buffer recorded on the host. Begin/End and submission
 * follow the state transitions of a device command buffer, so misuse shows up
 * as an error here the same way validation layers would report it.
 */
type VulkanCommandBuffer struct {
	// Command buffer state.
	State    VulkanCommandBufferState
	Commands []RecordedCommand
}

func NewVulkanCommandBuffer() *VulkanCommandBuffer {
	return &VulkanCommandBuffer{State: COMMAND_BUFFER_STATE_READY}
}

func (v *VulkanCommandBuffer) expect(op string, states ...VulkanCommandBufferState) error {
	for _, s := range states {
		if v.State == s {
			return nil
		}
	}
	return fmt.Errorf("%s on command buffer in state %s: %w", op, v.State, core.ErrInvariantViolation)
}

func (v *VulkanCommandBuffer) Begin() error {
	if err := v.expect("begin", COMMAND_BUFFER_STATE_READY); err != nil {
		return err
	}
	v.Commands = v.Commands[:0]
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(clear []vk.ClearValue) error {
	if err := v.expect("begin render pass", COMMAND_BUFFER_STATE_RECORDING); err != nil {
		return err
	}
	v.Commands = append(v.Commands, RecordedCommand{Op: OpBeginRenderPass, ClearValues: clear})
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	return nil
}

func (v *VulkanCommandBuffer) EndRenderPass() error {
	if err := v.expect("end render pass", COMMAND_BUFFER_STATE_IN_RENDER_PASS); err != nil {
		return err
	}
	v.Commands = append(v.Commands, RecordedCommand{Op: OpEndRenderPass})
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

// Record appends a command that must be issued inside a render pass.
func (v *VulkanCommandBuffer) Record(cmd RecordedCommand) error {
	if err := v.expect("record", COMMAND_BUFFER_STATE_IN_RENDER_PASS); err != nil {
		return err
	}
	v.Commands = append(v.Commands, cmd)
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := v.expect("end", COMMAND_BUFFER_STATE_RECORDING); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() error {
	if err := v.expect("submit", COMMAND_BUFFER_STATE_RECORDING_ENDED); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// Count returns how many recorded commands have the given op.
func (v *VulkanCommandBuffer) Count(op CommandOp) int {
	n := 0
	for _, c := range v.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}
