// Package posestate 提供分类线程与控制循环之间共享的"最新姿态"单元。
//
// 单写多读：分类器是唯一写入方，控制循环等读取方任意数量。
// 底层为原子整数，读写均不阻塞，也不会读到半写入的值。
package posestate

import (
	"sync/atomic"

	"myohand/define"
)

// Channel 保存最近一次分类得到的姿态
type Channel struct {
	pose atomic.Int32
	seq  atomic.Uint64
}

// New 创建通道并写入初始姿态，保证任何读取方都能看到合法值
func New(initial define.Pose) *Channel {
	c := &Channel{}
	c.pose.Store(int32(initial))
	return c
}

// Write 写入最新姿态（仅供唯一的写入方调用）
func (c *Channel) Write(p define.Pose) {
	c.pose.Store(int32(p))
	c.seq.Add(1)
}

// Read 读取最新姿态，从不阻塞
func (c *Channel) Read() define.Pose {
	return define.Pose(c.pose.Load())
}

// Seq 返回累计写入次数
func (c *Channel) Seq() uint64 {
	return c.seq.Load()
}
