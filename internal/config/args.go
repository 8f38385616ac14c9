package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	keyClasses = "classes"
	keyJars    = "jars"
	keyPeriod  = "period"
	keyLevel   = "loglevel"
)

// AgentArgs 是 agent 参数字符串解析的结果
//
// 支持两种写法：
//   - 命名：classes=/path/classes,jars=/path/jars,period=1000,loglevel=debug
//   - 旧式位置参数：/path/classes,/path/jars,1000
//
// 目录会被去掉首尾空白并补上结尾的路径分隔符；
// period 单位为毫秒，缺省或无法解析时为 -1。
type AgentArgs struct {
	Classes  string
	Jars     string
	Period   int
	LogLevel string
}

// NewAgentArgs 直接由各项构造，目录按解析时的规则处理
func NewAgentArgs(classes, jars string, period int, logLevel string) AgentArgs {
	return AgentArgs{
		Classes:  folderPath(classes),
		Jars:     folderPath(jars),
		Period:   period,
		LogLevel: strings.TrimSpace(logLevel),
	}
}

// ParseAgentArgs 解析 agent 参数字符串，空字符串得到无效的 AgentArgs
func ParseAgentArgs(s string) AgentArgs {
	args := AgentArgs{Period: -1}
	if s == "" {
		return args
	}
	if strings.Contains(s, "=") {
		args.parseNamed(s)
	} else {
		args.parsePositional(s)
	}
	return args
}

func (a *AgentArgs) parseNamed(s string) {
	values := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = value
	}

	if v, ok := values[keyClasses]; ok {
		a.Classes = folderPath(v)
	}
	if v, ok := values[keyJars]; ok {
		a.Jars = folderPath(v)
	}
	if v, ok := values[keyPeriod]; ok {
		a.Period = period(v)
	}
	if v, ok := values[keyLevel]; ok {
		a.LogLevel = strings.TrimSpace(v)
	}
}

func (a *AgentArgs) parsePositional(s string) {
	parts := strings.Split(s, ",")
	a.Classes = folderPath(parts[0])
	if len(parts) > 1 {
		a.Jars = folderPath(parts[1])
	}
	if len(parts) > 2 {
		a.Period = period(parts[2])
	}
}

// Valid 报告是否给出了类目录
func (a AgentArgs) Valid() bool {
	return a.Classes != ""
}

// String 以命名写法输出
func (a AgentArgs) String() string {
	var sb strings.Builder
	sb.WriteString(keyClasses + "=" + a.Classes)
	if a.Jars != "" {
		sb.WriteString("," + keyJars + "=" + a.Jars)
	}
	sb.WriteString("," + keyPeriod + "=" + strconv.Itoa(a.Period))
	if a.LogLevel != "" {
		sb.WriteString("," + keyLevel + "=" + a.LogLevel)
	}
	return sb.String()
}

func folderPath(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasSuffix(v, string(os.PathSeparator)) {
		v += string(os.PathSeparator)
	}
	return v
}

func period(v string) int {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return -1
	}
	return p
}
