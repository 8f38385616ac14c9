// Package hotwatch 以轮询方式检测目录树中文件的新增、修改与删除，
// 以及归档(jar/zip)内部条目的修改，并同步通知已注册的监听器。
//
// 核心特点：
//   - Detector 递归扫描监控根目录，只关心一个扩展名，按修改时间判断变化
//   - 每次扫描先做删除检查，再做新增/修改检查，重命名表现为 Deleted + Added
//   - ArchiveDetector 在文件级检测之上为每个归档维护 条目名 -> 时间 的索引，
//     归档被修改时只报告已跟踪条目的时间变化
//   - Scheduler 以固定延迟调度检测器，最小间隔 500ms，同一检测器的扫描串行执行
//   - 监听器按注册顺序同步调用，出错或 panic 时报告给 ErrorSink，不影响其它监听器
//   - 文件系统通过 vfs.FS 抽象，测试中可以换成 vfs/memfs
//
// 注意：
//   - 只做轮询，不保证能发现比轮询间隔更快的反复变化
//   - 新出现在已跟踪归档内的条目只记入基线，不产生事件
//   - 单个文件或归档读取失败只跳过本轮，下一轮自动重试
//   - 构造时的配置错误(根目录不是绝对路径或不存在)是唯一的致命错误
//
// 推荐使用方式：
//  1. 通过 NewDetector / NewArchiveDetector 创建检测器
//  2. 用 OnAdded / OnModified / OnDeleted / OnEntryModified 注册监听器
//  3. 通过 NewScheduler 创建调度器并 Start
//  4. 结束时 Stop 或 StopAll
//
// 或者直接使用 Agent 组合类目录与 jar 目录，把修改交给 Reloader。
//
// 并发安全：
//   - 同一个检测器的 Scan 互斥执行，不同检测器之间没有共享状态
//   - Snapshot、Index 等查询方法可以与扫描并发调用
//   - 监听器中不能再调用同一检测器的 Scan
package hotwatch
