/*
Package netemu 解码 PS2 兼容层使用的补丁配置二进制格式。

格式没有文件头、长度或校验和，只有一串以 32 位小端字存放的命令 (0x00-0x50)，
每个命令后紧跟各自布局的参数块。本包包含：

catalog.go -- 只读命令表 (名称来自内嵌的 catalog.yaml，参数布局为 Go 常量表)

decode.go -- 按布局解码参数块，返回 params.go 中的标签联合

scanner.go -- 按内容模式查找候选命令位置和零字边界

section.go -- 把命令出现分组为配置段

legacy.go -- 旧的 0x0A 补丁提取启发式

format.go -- 字节序翻转与 hash 格式化

filter.go -- 基于 expr 的命令过滤表达式

解码过程不持有可变共享状态，同一个 Decoder 可以被多个请求并发使用。
*/
package netemu
