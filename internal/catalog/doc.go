// Package catalog 负责与远程字体目录交互：把用户输入的引用（族名、样式表 URL 或
// <link> 嵌入片段）解析为样式表地址，抓取并解析 @font-face 声明，再下载选中的变体文件。
//
// 本包不做重试；重试策略由 manager 统一施加，因此这里的每个错误都保持原始分类
// （font.NetworkError / font.NotFoundError / font.ParseError）。
package catalog
